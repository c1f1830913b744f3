package collection

import (
	"fmt"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/value"
)

// Ref is the compact collection reference embedded in every case.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Case is a processed case: values resolved, children embedded in order.
type Case struct {
	ID         int                    `json:"id"`
	Collection Ref                    `json:"collection"`
	Parent     *int                   `json:"parent,omitempty"`
	Values     map[string]value.Value `json:"values"`
	Children   []*Case                `json:"children"`
}

// Collection is one level of the dataset hierarchy.
// Attrs order is render and storage order. Cases holds only this level's cases.
type Collection struct {
	ID       int                   `json:"id"`
	Name     string                `json:"name"`
	Title    string                `json:"title"`
	ParentID *int                  `json:"parentId,omitempty"`
	Attrs    []attribute.Attribute `json:"attrs"`
	Cases    []*Case               `json:"cases"`
}

// IsRoot reports whether the collection has no parent.
func (c Collection) IsRoot() bool { return c.ParentID == nil }

// Ref returns the compact reference.
func (c Collection) Ref() Ref { return Ref{ID: c.ID, Name: c.Name} }

// DisplayName returns Title, falling back to Name.
func (c Collection) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// AttrIndexByClientID returns the position of the attribute or -1.
func (c Collection) AttrIndexByClientID(clientID string) int {
	for i, a := range c.Attrs {
		if a.ClientID == clientID {
			return i
		}
	}
	return -1
}

// AttrIndexByID returns the position of the attribute with the host id or -1.
func (c Collection) AttrIndexByID(id int) int {
	for i, a := range c.Attrs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// AttrIndexByTitle returns the position of the attribute whose display name matches or -1.
func (c Collection) AttrIndexByTitle(title string) int {
	for i, a := range c.Attrs {
		if a.DisplayName() == title {
			return i
		}
	}
	return -1
}

// IndexByID returns the position of the collection with id or -1.
func IndexByID(cols []Collection, id int) int {
	for i, c := range cols {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// PlaceAttribute moves the attribute with clientID to index of the collection
// with collectionID; index is clamped to the attribute list. Cases and every
// other attribute keep their state. It reports false, leaving cols untouched,
// when the attribute or the collection is missing.
func PlaceAttribute(cols []Collection, clientID string, collectionID, index int) bool {
	ti := IndexByID(cols, collectionID)
	if ti < 0 {
		return false
	}
	si, ai := -1, -1
	for i := range cols {
		if j := cols[i].AttrIndexByClientID(clientID); j >= 0 {
			si, ai = i, j
			break
		}
	}
	if si < 0 {
		return false
	}

	a := cols[si].Attrs[ai]
	rest := make([]attribute.Attribute, 0, len(cols[si].Attrs)-1)
	rest = append(rest, cols[si].Attrs[:ai]...)
	cols[si].Attrs = append(rest, cols[si].Attrs[ai+1:]...)

	attrs := cols[ti].Attrs
	index = max(0, min(index, len(attrs)))
	out := make([]attribute.Attribute, 0, len(attrs)+1)
	out = append(out, attrs[:index]...)
	out = append(out, a)
	cols[ti].Attrs = append(out, attrs[index:]...)
	return true
}

// IndexByName returns the position of the collection with name or -1.
func IndexByName(cols []Collection, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// OrderByHierarchy sorts collections root to leaf so that every collection
// follows its parent. Siblings keep their input order.
func OrderByHierarchy(cols []Collection) ([]Collection, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	byID := make(map[int]bool, len(cols))
	for _, c := range cols {
		if byID[c.ID] {
			return nil, fmt.Errorf("duplicate collection id %d: %w", c.ID, domain.ErrStructuralDrift)
		}
		byID[c.ID] = true
	}

	roots := 0
	for _, c := range cols {
		if c.ParentID == nil {
			roots++
			continue
		}
		if !byID[*c.ParentID] {
			return nil, fmt.Errorf("collection %q parent %d: %w", c.Name, *c.ParentID, domain.ErrUnresolvable)
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("expected one root collection, found %d: %w", roots, domain.ErrStructuralDrift)
	}

	ordered := make([]Collection, 0, len(cols))
	placed := make(map[int]bool, len(cols))
	for len(ordered) < len(cols) {
		progressed := false
		for _, c := range cols {
			if placed[c.ID] {
				continue
			}
			if c.ParentID == nil || placed[*c.ParentID] {
				ordered = append(ordered, c)
				placed[c.ID] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("collection parent cycle: %w", domain.ErrStructuralDrift)
		}
	}
	return ordered, nil
}

// IndexCases maps every case id across all levels to its case.
func IndexCases(cols []Collection) map[int]*Case {
	n := 0
	for _, c := range cols {
		n += len(c.Cases)
	}
	idx := make(map[int]*Case, n)
	for _, c := range cols {
		for _, cs := range c.Cases {
			idx[cs.ID] = cs
		}
	}
	return idx
}

// CloneAll deep-copies collections. Cases shared between a level's Cases and
// its parent's Children stay shared in the copy.
func CloneAll(cols []Collection) []Collection {
	if cols == nil {
		return nil
	}
	memo := make(map[*Case]*Case)
	out := make([]Collection, len(cols))
	for i, c := range cols {
		cc := c
		if c.ParentID != nil {
			p := *c.ParentID
			cc.ParentID = &p
		}
		cc.Attrs = attribute.CloneAll(c.Attrs)
		cc.Cases = make([]*Case, len(c.Cases))
		for j, cs := range c.Cases {
			cc.Cases[j] = cloneCase(cs, memo)
		}
		out[i] = cc
	}
	return out
}

func cloneCase(c *Case, memo map[*Case]*Case) *Case {
	if c == nil {
		return nil
	}
	if done, ok := memo[c]; ok {
		return done
	}
	cp := &Case{ID: c.ID, Collection: c.Collection}
	memo[c] = cp
	if c.Parent != nil {
		p := *c.Parent
		cp.Parent = &p
	}
	cp.Values = make(map[string]value.Value, len(c.Values))
	for k, v := range c.Values {
		cp.Values[k] = v
	}
	cp.Children = make([]*Case, len(c.Children))
	for i, ch := range c.Children {
		cp.Children[i] = cloneCase(ch, memo)
	}
	return cp
}
