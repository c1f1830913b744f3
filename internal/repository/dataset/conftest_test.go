package dataset

import (
	"github.com/kailas-cloud/casetable/internal/host"
	"github.com/kailas-cloud/casetable/internal/host/hosttest"
)

// newMammalsHost scripts a two-level dataset:
// diets (2 cases) -> animals (3 cases).
func newMammalsHost() *hosttest.Host {
	h := hosttest.New()
	ds := host.DataContext("Mammals")

	h.Reply(host.Get, host.DataContextList, []map[string]any{
		{"id": 1, "name": "Mammals", "title": "Mammals"},
	})
	h.Reply(host.Get, ds.CollectionList().String(), []map[string]any{
		{"id": 10, "name": "diets", "title": "Diets"},
		{"id": 20, "name": "animals", "title": "Animals"},
	})
	h.Reply(host.Get, host.DataContext("Mammals").Collection("diets").String(), map[string]any{
		"id": 10, "name": "diets", "title": "Diets",
		"attrs": []map[string]any{
			{"id": 100, "name": "diet", "title": "Diet", "type": "categorical"},
		},
	})
	h.Reply(host.Get, host.DataContext("Mammals").Collection("animals").String(), map[string]any{
		"id": 20, "name": "animals", "title": "Animals", "parent": 10,
		"attrs": []map[string]any{
			{"id": 200, "cid": "ATTR-name", "name": "name", "title": "Name"},
			{"id": 201, "name": "mass", "title": "Mass", "type": "numeric", "precision": "2", "renameable": false},
			{"id": 202, "name": "hiddenNote", "hidden": true, "precision": ""},
		},
	})
	h.Reply(host.Get, host.DataContext("Mammals").Collection("diets").CaseCount().String(), 2)
	h.Reply(host.Get, host.DataContext("Mammals").Collection("diets").CaseByIndex(0).String(), map[string]any{
		"caseIndex": 0,
		"case": map[string]any{"id": 1, "collection": map[string]any{"id": 10, "name": "diets"},
			"values": map[string]any{"diet": "plants"}, "children": []int{3, 4}},
	})
	h.Reply(host.Get, host.DataContext("Mammals").Collection("diets").CaseByIndex(1).String(), map[string]any{
		"caseIndex": 1,
		"case": map[string]any{"id": 2, "collection": map[string]any{"id": 10, "name": "diets"},
			"values": map[string]any{"diet": "meat"}, "children": []int{5}},
	})
	animals := map[int]map[string]any{
		3: {"name": "Elephant", "mass": 4500.126},
		4: {"name": "Cow", "mass": 700},
		5: {"name": "Lion", "mass": 190.5},
	}
	parents := map[int]int{3: 1, 4: 1, 5: 2}
	for id, vals := range animals {
		h.Reply(host.Get, host.DataContext("Mammals").CaseByID(id).String(), map[string]any{
			"case": map[string]any{"id": id, "parent": parents[id],
				"collection": map[string]any{"id": 20, "name": "animals"},
				"values":     vals, "children": []int{}},
		})
	}
	return h
}
