// Package layout picks the rendering strategy for a collection tree and
// provides the pure helpers the renderer uses to size and style it.
package layout

import (
	"fmt"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	"github.com/kailas-cloud/casetable/internal/domain/value"
)

// Layout is a rendering strategy.
type Layout string

// Layouts. Flat is forced for single-collection datasets; Unselected renders only the chooser.
const (
	Unselected Layout = ""
	Flat       Layout = "flat"
	Portrait   Layout = "portrait"
	Landscape  Layout = "landscape"
)

// Parse converts a stored or user-supplied string into a Layout.
func Parse(s string) (Layout, error) {
	switch Layout(s) {
	case Unselected, Flat, Portrait, Landscape:
		return Layout(s), nil
	default:
		return Unselected, fmt.Errorf("%w: unknown layout %q", domain.ErrValidation, s)
	}
}

// IsChoosable reports whether a user may pick l as a preference.
func (l Layout) IsChoosable() bool { return l == Portrait || l == Landscape }

// String returns the layout name, "unselected" for the zero value.
func (l Layout) String() string {
	if l == Unselected {
		return "unselected"
	}
	return string(l)
}

// Select resolves the layout for a dataset with the given number of collections.
// One collection is always Flat. Otherwise the stored preference applies; a
// non-choosable preference yields Unselected.
func Select(collections int, preferred Layout) Layout {
	if collections == 1 {
		return Flat
	}
	if collections == 0 || !preferred.IsChoosable() {
		return Unselected
	}
	return preferred
}

// ValueLength sums the value counts of the given rows. Used for header colspans.
func ValueLength(rows []map[string]value.Value) int {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	return n
}

// CaseValueLength is ValueLength over cases.
func CaseValueLength(cases []*collection.Case) int {
	n := 0
	for _, c := range cases {
		if c != nil {
			n += len(c.Values)
		}
	}
	return n
}

var levelClasses = []string{"parent-row", "child-row", "grandchild-row"}

// ClassMap assigns a stable per-level style token to each collection.
// Tokens follow the collection index at the time the map was built.
type ClassMap struct {
	byID map[int]string
}

// NewClassMap builds tokens for the collections in their current root-to-leaf order.
func NewClassMap(cols []collection.Collection) ClassMap {
	m := ClassMap{byID: make(map[int]string, len(cols))}
	for i, c := range cols {
		m.byID[c.ID] = classForLevel(i)
	}
	return m
}

func classForLevel(i int) string {
	if i < len(levelClasses) {
		return levelClasses[i]
	}
	return fmt.Sprintf("level-%d-row", i)
}

// ClassName returns the token of the case's owning collection, empty if unknown.
func (m ClassMap) ClassName(c *collection.Case) string {
	if c == nil {
		return ""
	}
	return m.byID[c.Collection.ID]
}

// ForCollection returns the token of a collection id.
func (m ClassMap) ForCollection(id int) string { return m.byID[id] }

// Tokens returns a copy of the id -> token map.
func (m ClassMap) Tokens() map[int]string {
	out := make(map[int]string, len(m.byID))
	for k, v := range m.byID {
		out[k] = v
	}
	return out
}
