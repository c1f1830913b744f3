package model

import (
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/casetree"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/value"
)

// Snapshot is a read-only copy of the model state for rendering.
type Snapshot struct {
	Dataset     string
	Collections []collection.Collection
	Layout      layout.Layout
	Preference  layout.Layout
	// Classes maps collection id to its per-level style token.
	Classes map[int]string
	// NewAttribute holds the client id of the attribute to focus for rename, if any.
	NewAttribute string
	Pending      []string
	Stale        bool
	StaleReason  string
	Warnings     []casetree.Warning
}

// ClassName returns the style token of the collection that owns c.
func (s Snapshot) ClassName(c *collection.Case) string {
	if c == nil {
		return ""
	}
	return s.Classes[c.Collection.ID]
}

// EditResult reports the value a cell settled on after a host round trip.
type EditResult struct {
	CaseID int         `json:"caseId"`
	Attr   string      `json:"attr"`
	Value  value.Value `json:"value"`
}

type derivedMaps struct {
	precisions   map[string]int
	types        map[string]attribute.Type
	visibilities map[string]bool
}

func deriveMaps(cols []collection.Collection) *derivedMaps {
	d := &derivedMaps{
		precisions:   make(map[string]int),
		types:        make(map[string]attribute.Type),
		visibilities: make(map[string]bool),
	}
	for _, c := range cols {
		for _, a := range c.Attrs {
			if a.Precision != nil {
				d.precisions[a.Name] = *a.Precision
			}
			d.types[a.Name] = a.Type
			d.visibilities[a.Name] = !a.Hidden
		}
	}
	return d
}

func newAttributeOf(cols []collection.Collection) string {
	for _, c := range cols {
		for i, a := range c.Attrs {
			if attribute.IsNewAttribute(a.DisplayName(), i, c.Attrs) {
				return a.ClientID
			}
		}
	}
	return ""
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
