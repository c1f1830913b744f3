package lineage

import (
	"testing"

	"github.com/kailas-cloud/casetable/internal/domain/collection"
)

func intPtr(i int) *int { return &i }

func threeLevelTree() []collection.Collection {
	city := &collection.Case{ID: 300, Collection: collection.Ref{ID: 3, Name: "cities"}, Parent: intPtr(200)}
	country := &collection.Case{ID: 200, Collection: collection.Ref{ID: 2, Name: "countries"}, Parent: intPtr(100),
		Children: []*collection.Case{city}}
	region := &collection.Case{ID: 100, Collection: collection.Ref{ID: 1, Name: "regions"},
		Children: []*collection.Case{country}}
	return []collection.Collection{
		{ID: 1, Name: "regions", Cases: []*collection.Case{region}},
		{ID: 2, Name: "countries", ParentID: intPtr(1), Cases: []*collection.Case{country}},
		{ID: 3, Name: "cities", ParentID: intPtr(2), Cases: []*collection.Case{city}},
	}
}

func TestCompute_LeafSelection(t *testing.T) {
	cols := threeLevelTree()
	l := Compute(cols, 300)

	if len(l) != 3 {
		t.Fatalf("len = %d, want 3", len(l))
	}
	wantCases := []int{100, 200, 300}
	for i, e := range l {
		if e.CaseID != wantCases[i] {
			t.Errorf("entry %d case = %d, want %d", i, e.CaseID, wantCases[i])
		}
		if e.CollectionID != cols[i].ID {
			t.Errorf("entry %d collection = %d, want %d", i, e.CollectionID, cols[i].ID)
		}
	}
	if leaf, ok := l.Leaf(); !ok || leaf != 300 {
		t.Errorf("Leaf() = %d, %v", leaf, ok)
	}
}

func TestCompute_MiddleSelection(t *testing.T) {
	l := Compute(threeLevelTree(), 200)
	if got := l.CaseIDs(); len(got) != 2 || got[0] != 100 || got[1] != 200 {
		t.Errorf("CaseIDs = %v, want [100 200]", got)
	}
}

func TestCompute_UnknownCase(t *testing.T) {
	l := Compute(threeLevelTree(), 999)
	if len(l) != 0 {
		t.Errorf("expected empty lineage, got %v", l)
	}
	if _, ok := l.Leaf(); ok {
		t.Error("empty lineage has no leaf")
	}
}

func TestCompute_MissingAncestorTruncates(t *testing.T) {
	cols := threeLevelTree()
	cols[0].Cases = nil // region removed concurrently

	l := Compute(cols, 300)
	if got := l.CaseIDs(); len(got) != 2 || got[0] != 200 || got[1] != 300 {
		t.Errorf("CaseIDs = %v, want [200 300]", got)
	}
}

func TestCompute_ParentInWrongCollection(t *testing.T) {
	cols := threeLevelTree()
	cols[2].Cases[0].Parent = intPtr(100) // points at a region, skipping a level

	l := Compute(cols, 300)
	if len(l) != 1 || l[0].CaseID != 300 {
		t.Errorf("lineage = %v, want only the selected case", l)
	}
}

func TestContains(t *testing.T) {
	l := Compute(threeLevelTree(), 300)
	if !l.Contains(200) || l.Contains(5) {
		t.Errorf("Contains wrong for %v", l)
	}
}
