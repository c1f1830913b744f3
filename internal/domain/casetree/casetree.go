// Package casetree rebuilds the nested case forest from the host's flat case lists.
package casetree

import (
	"fmt"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	"github.com/kailas-cloud/casetable/internal/domain/value"
)

// RawCase is the host wire shape of a case.
type RawCase struct {
	ID           int            `json:"id"`
	CollectionID int            `json:"collectionId"`
	ParentID     *int           `json:"parentId,omitempty"`
	Values       map[string]any `json:"values"`
	ChildIDs     []int          `json:"childIds"`
}

// Level pairs a collection (attributes filled, cases empty) with its raw cases.
type Level struct {
	Collection collection.Collection
	Cases      []RawCase
}

// WarningKind classifies a recoverable inconsistency found while building.
type WarningKind string

// Warning kinds.
const (
	DanglingChild  WarningKind = "dangling_child"
	DoubleClaim    WarningKind = "double_claim"
	Orphan         WarningKind = "orphan"
	Cycle          WarningKind = "cycle"
	DuplicateCase  WarningKind = "duplicate_case"
	ParentMismatch WarningKind = "parent_mismatch"
)

// Warning describes a case reference the builder dropped or corrected.
type Warning struct {
	Kind         WarningKind
	CollectionID int
	CaseID       int
	RelatedID    int
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: collection=%d case=%d related=%d", w.Kind, w.CollectionID, w.CaseID, w.RelatedID)
}

// Result is the builder output.
type Result struct {
	Collections []collection.Collection
	Warnings    []Warning
}

type builder struct {
	levels    []Level
	levelOf   map[int]int // collection id -> level position
	childLvls map[int][]int
	indexes   []map[int]*RawCase
	memo      map[int]*collection.Case
	visiting  map[int]bool
	claimedBy map[int]int
	precision []map[string]*int
	warnings  []Warning
}

// Build materializes the case forest. Levels must be ordered root to leaf:
// every level's parent must be an earlier level. Each output collection holds
// only its own level's cases; a case's Children are the processed cases of
// the child level that it claims. Dangling, double-claimed and orphaned
// references are dropped and reported as warnings.
func Build(levels []Level) (Result, error) {
	b := &builder{
		levels:    levels,
		levelOf:   make(map[int]int, len(levels)),
		childLvls: make(map[int][]int, len(levels)),
		indexes:   make([]map[int]*RawCase, len(levels)),
		memo:      make(map[int]*collection.Case),
		visiting:  make(map[int]bool),
		claimedBy: make(map[int]int),
		precision: make([]map[string]*int, len(levels)),
	}

	for i, lvl := range levels {
		col := lvl.Collection
		if _, dup := b.levelOf[col.ID]; dup {
			return Result{}, fmt.Errorf("duplicate collection %d: %w", col.ID, domain.ErrStructuralDrift)
		}
		if i == 0 && col.ParentID != nil {
			return Result{}, fmt.Errorf("first level %q has a parent: %w", col.Name, domain.ErrStructuralDrift)
		}
		if i > 0 {
			if col.ParentID == nil {
				return Result{}, fmt.Errorf("level %q has no parent: %w", col.Name, domain.ErrStructuralDrift)
			}
			p, ok := b.levelOf[*col.ParentID]
			if !ok {
				return Result{}, fmt.Errorf("level %q parent %d not processed yet: %w",
					col.Name, *col.ParentID, domain.ErrStructuralDrift)
			}
			b.childLvls[p] = append(b.childLvls[p], i)
		}
		b.levelOf[col.ID] = i
		b.index(i, lvl)
	}

	out := make([]collection.Collection, len(levels))
	for i, lvl := range levels {
		col := lvl.Collection
		col.Cases = make([]*collection.Case, 0, len(lvl.Cases))
		for j := range lvl.Cases {
			raw := &lvl.Cases[j]
			if b.indexes[i][raw.ID] != raw {
				continue // duplicate, already reported
			}
			if i > 0 {
				if _, claimed := b.claimedBy[raw.ID]; !claimed {
					b.warn(Orphan, col.ID, raw.ID, 0)
					continue
				}
			}
			if c := b.materialize(i, raw); c != nil {
				col.Cases = append(col.Cases, c)
			}
		}
		out[i] = col
	}

	return Result{Collections: out, Warnings: b.warnings}, nil
}

func (b *builder) index(i int, lvl Level) {
	idx := make(map[int]*RawCase, len(lvl.Cases))
	for j := range lvl.Cases {
		raw := &lvl.Cases[j]
		if _, dup := idx[raw.ID]; dup {
			b.warn(DuplicateCase, lvl.Collection.ID, raw.ID, 0)
			continue
		}
		idx[raw.ID] = raw
	}
	b.indexes[i] = idx

	prec := make(map[string]*int, len(lvl.Collection.Attrs))
	for _, a := range lvl.Collection.Attrs {
		prec[a.Name] = a.Precision
	}
	b.precision[i] = prec
}

func (b *builder) materialize(i int, raw *RawCase) *collection.Case {
	if c, ok := b.memo[raw.ID]; ok {
		return c
	}
	col := b.levels[i].Collection
	if b.visiting[raw.ID] {
		b.warn(Cycle, col.ID, raw.ID, 0)
		return nil
	}
	b.visiting[raw.ID] = true
	defer delete(b.visiting, raw.ID)

	c := &collection.Case{
		ID:         raw.ID,
		Collection: col.Ref(),
		Values:     make(map[string]value.Value, len(raw.Values)),
		Children:   make([]*collection.Case, 0, len(raw.ChildIDs)),
	}
	if raw.ParentID != nil {
		p := *raw.ParentID
		c.Parent = &p
	}
	for name, v := range raw.Values {
		c.Values[name] = value.New(v, b.precision[i][name])
	}

	for _, childID := range raw.ChildIDs {
		li, childRaw := b.lookupChild(i, childID)
		if childRaw == nil {
			b.warn(DanglingChild, col.ID, raw.ID, childID)
			continue
		}
		if owner, claimed := b.claimedBy[childID]; claimed && owner != raw.ID {
			b.warn(DoubleClaim, col.ID, raw.ID, childID)
			continue
		}
		b.claimedBy[childID] = raw.ID
		child := b.materialize(li, childRaw)
		if child == nil {
			continue
		}
		if child.Parent == nil || *child.Parent != raw.ID {
			b.warn(ParentMismatch, b.levels[li].Collection.ID, childID, raw.ID)
			p := raw.ID
			child.Parent = &p
		}
		c.Children = append(c.Children, child)
	}

	b.memo[raw.ID] = c
	return c
}

func (b *builder) lookupChild(i, childID int) (int, *RawCase) {
	for _, li := range b.childLvls[i] {
		if raw, ok := b.indexes[li][childID]; ok {
			return li, raw
		}
	}
	return -1, nil
}

func (b *builder) warn(kind WarningKind, collectionID, caseID, related int) {
	b.warnings = append(b.warnings, Warning{Kind: kind, CollectionID: collectionID, CaseID: caseID, RelatedID: related})
}

// CountCases returns the total processed case count across levels.
func CountCases(cols []collection.Collection) int {
	n := 0
	for _, c := range cols {
		n += len(c.Cases)
	}
	return n
}
