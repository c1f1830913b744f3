// Package relocation plans drag-and-drop attribute moves.
//
// Planning is pure: it reads the current collections and returns either nil
// (nothing to do) or a Plan carrying the host request arguments and, for
// reorders and transfers, the collections as they look after the move.
package relocation

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
)

// RootTarget is the synthetic collection id of the "new top-level collection" drop zone.
const RootTarget = "root"

// Side is the half of the target attribute the pointer was released over.
type Side string

// Sides.
const (
	Left  Side = "left"
	Right Side = "right"
)

// Kind is the plan variant.
type Kind string

// Plan kinds.
const (
	Reorder       Kind = "reorder"
	Transfer      Kind = "transfer"
	TransferToEnd Kind = "transfer_to_end"
	Promote       Kind = "promote"
)

// Source is the dragged attribute.
type Source struct {
	CollectionID int    `json:"collectionId"`
	AttrClientID string `json:"attrClientId"`
}

// Target is where the attribute was dropped. AttrClientID is empty for a drop
// on a collection header. NewCollection marks the "create collection from this
// attribute" zone, in which case CollectionID is RootTarget or the id of the
// collection that becomes the new collection's parent.
type Target struct {
	CollectionID  string `json:"collectionId"`
	AttrClientID  string `json:"attrClientId,omitempty"`
	NewCollection bool   `json:"newCollection,omitempty"`
}

// Geometry resolves above/below ambiguity for header drops. Zero value means unknown.
type Geometry struct {
	DraggedTop   float64 `json:"draggedTop"`
	DeltaY       float64 `json:"deltaY"`
	TargetTop    float64 `json:"targetTop"`
	TargetHeight float64 `json:"targetHeight"`
}

func (g Geometry) known() bool { return g.TargetHeight > 0 }

// below reports whether the pointer under the dragged rectangle ended below the target's vertical center.
func (g Geometry) below() bool {
	return g.DraggedTop+g.DeltaY > g.TargetTop+g.TargetHeight/2
}

// Plan is the effect of one attribute move.
type Plan struct {
	Kind   Kind                `json:"kind"`
	Attr   attribute.Attribute `json:"attr"`
	Source collection.Ref      `json:"source"`
	// Target is the receiving collection; for Promote it is the new collection's parent (zero when RootParent).
	Target collection.Ref `json:"target"`
	// Position is the host "position" argument.
	Position int `json:"position"`
	// SourceIndex and TargetIndex are the attribute's slot before and after the move.
	SourceIndex int `json:"sourceIndex"`
	TargetIndex int `json:"targetIndex"`
	// RootParent marks a promotion to a new top-level collection.
	RootParent        bool   `json:"rootParent,omitempty"`
	NewCollectionName string `json:"newCollectionName,omitempty"`
	// Collections is the post-move state for Reorder, Transfer and TransferToEnd; nil for Promote.
	Collections []collection.Collection `json:"-"`
}

// NeedsReload reports whether applying the plan requires a fresh fetch instead of a local patch.
func (p *Plan) NeedsReload() bool { return p.Kind == Promote }

// PlanMove computes the move. It returns nil when source and target resolve to
// the same attribute, when the move would not change anything, or when either
// side cannot be resolved.
func PlanMove(cols []collection.Collection, src Source, tgt Target, side Side, geom Geometry) *Plan {
	si := collection.IndexByID(cols, src.CollectionID)
	if si < 0 {
		return nil
	}
	sai := cols[si].AttrIndexByClientID(src.AttrClientID)
	if sai < 0 {
		return nil
	}

	if tgt.NewCollection {
		return planPromote(cols, si, sai, tgt)
	}

	tid, err := strconv.Atoi(tgt.CollectionID)
	if err != nil {
		return nil
	}
	ti := collection.IndexByID(cols, tid)
	if ti < 0 {
		return nil
	}

	if tgt.AttrClientID == "" {
		return planToEnd(cols, si, sai, ti, geom)
	}

	tai := cols[ti].AttrIndexByClientID(tgt.AttrClientID)
	if tai < 0 {
		return nil
	}
	if si == ti {
		if sai == tai {
			return nil
		}
		pos := tai
		if side == Right && tai >= sai {
			pos++
		}
		return planReorder(cols, si, sai, pos, Reorder)
	}

	insert := tai
	if side != Left {
		insert++
	}
	return planTransfer(cols, si, sai, ti, insert, Transfer)
}

// planReorder applies the host position convention: the position is counted
// before the source is removed, so a forward move lands one slot earlier.
func planReorder(cols []collection.Collection, si, sai, pos int, kind Kind) *Plan {
	attrs := cols[si].Attrs
	insert := pos
	if pos > sai {
		insert = pos - 1
	}
	if insert == sai {
		return nil
	}

	out := collection.CloneAll(cols)
	moved := out[si].Attrs[sai]
	rest := removeAt(out[si].Attrs, sai)
	out[si].Attrs = insertAt(rest, insert, moved)

	return &Plan{
		Kind:        kind,
		Attr:        attrs[sai].Clone(),
		Source:      cols[si].Ref(),
		Target:      cols[si].Ref(),
		Position:    pos,
		SourceIndex: sai,
		TargetIndex: insert,
		Collections: out,
	}
}

func planTransfer(cols []collection.Collection, si, sai, ti, insert int, kind Kind) *Plan {
	out := collection.CloneAll(cols)
	moved := out[si].Attrs[sai]
	out[si].Attrs = removeAt(out[si].Attrs, sai)
	out[ti].Attrs = insertAt(out[ti].Attrs, insert, moved)

	return &Plan{
		Kind:        kind,
		Attr:        cols[si].Attrs[sai].Clone(),
		Source:      cols[si].Ref(),
		Target:      cols[ti].Ref(),
		Position:    insert,
		SourceIndex: sai,
		TargetIndex: insert,
		Collections: out,
	}
}

// planToEnd handles a drop on a collection header: append, or prepend when
// the geometry says the pointer stayed above the target's vertical center.
func planToEnd(cols []collection.Collection, si, sai, ti int, geom Geometry) *Plan {
	before := geom.known() && !geom.below()
	if si == ti {
		pos := len(cols[si].Attrs)
		if before {
			pos = 0
		}
		return planReorder(cols, si, sai, pos, TransferToEnd)
	}
	insert := len(cols[ti].Attrs)
	if before {
		insert = 0
	}
	return planTransfer(cols, si, sai, ti, insert, TransferToEnd)
}

func planPromote(cols []collection.Collection, si, sai int, tgt Target) *Plan {
	p := &Plan{
		Kind:              Promote,
		Attr:              cols[si].Attrs[sai].Clone(),
		Source:            cols[si].Ref(),
		SourceIndex:       sai,
		NewCollectionName: uniqueCollectionName(cols, cols[si].Attrs[sai].Name),
	}
	if tgt.CollectionID == RootTarget {
		p.RootParent = true
		return p
	}
	pid, err := strconv.Atoi(tgt.CollectionID)
	if err != nil {
		return nil
	}
	pi := collection.IndexByID(cols, pid)
	if pi < 0 {
		return nil
	}
	p.Target = cols[pi].Ref()
	return p
}

func uniqueCollectionName(cols []collection.Collection, base string) string {
	if collection.IndexByName(cols, base) < 0 {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s_%d", base, n)
		if collection.IndexByName(cols, name) < 0 {
			return name
		}
	}
}

func removeAt(attrs []attribute.Attribute, i int) []attribute.Attribute {
	out := make([]attribute.Attribute, 0, len(attrs)-1)
	out = append(out, attrs[:i]...)
	return append(out, attrs[i+1:]...)
}

func insertAt(attrs []attribute.Attribute, i int, a attribute.Attribute) []attribute.Attribute {
	if i < 0 {
		i = 0
	}
	if i > len(attrs) {
		i = len(attrs)
	}
	out := make([]attribute.Attribute, 0, len(attrs)+1)
	out = append(out, attrs[:i]...)
	out = append(out, a)
	return append(out, attrs[i:]...)
}
