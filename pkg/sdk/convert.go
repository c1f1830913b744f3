package casetable

import (
	"strconv"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/domain/value"
	"github.com/kailas-cloud/casetable/internal/host"
	"github.com/kailas-cloud/casetable/internal/usecase/model"
)

func fromInternalMatches(ms []collection.AttrMatch) []AttrMatch {
	out := make([]AttrMatch, 0, len(ms))
	for _, m := range ms {
		out = append(out, AttrMatch{
			CollectionID:   m.Collection.ID,
			CollectionName: m.Collection.Name,
			Attr:           fromInternalAttribute(m.Attr),
			Score:          m.Score,
			Matched:        m.Matched,
		})
	}
	return out
}

func fromInternalValue(v value.Value) Value {
	return Value{Kind: ValueKind(v.Kind()), Raw: v.Raw(), Formatted: v.Formatted()}
}

func fromInternalAttribute(a attribute.Attribute) Attribute {
	out := Attribute{
		ID:        a.ID,
		ClientID:  a.ClientID,
		Name:      a.Name,
		Title:     a.DisplayName(),
		Type:      string(a.Type),
		Hidden:    a.Hidden,
		Editable:  a.Editable,
		Renamable: a.Renamable,
	}
	if a.Precision != nil {
		p := *a.Precision
		out.Precision = &p
	}
	return out
}

func fromInternalCases(cases []*collection.Case) []*Case {
	out := make([]*Case, 0, len(cases))
	for _, c := range cases {
		if c == nil {
			continue
		}
		pc := &Case{
			ID:       c.ID,
			Values:   make(map[string]Value, len(c.Values)),
			Children: fromInternalCases(c.Children),
		}
		if c.Parent != nil {
			p := *c.Parent
			pc.Parent = &p
		}
		for k, v := range c.Values {
			pc.Values[k] = fromInternalValue(v)
		}
		out = append(out, pc)
	}
	return out
}

func fromInternalCollections(cols []collection.Collection, classes map[int]string) []Collection {
	out := make([]Collection, len(cols))
	for i, c := range cols {
		attrs := make([]Attribute, len(c.Attrs))
		for j, a := range c.Attrs {
			attrs[j] = fromInternalAttribute(a)
		}
		out[i] = Collection{
			ID:    c.ID,
			Name:  c.Name,
			Title: c.DisplayName(),
			Attrs: attrs,
			Cases: fromInternalCases(c.Cases),
			Class: classes[c.ID],
		}
		if c.ParentID != nil {
			p := *c.ParentID
			out[i].ParentID = &p
		}
	}
	return out
}

func fromInternalSnapshot(snap model.Snapshot, subscription string, l lineage.Lineage) State {
	warnings := make([]string, len(snap.Warnings))
	for i, w := range snap.Warnings {
		warnings[i] = w.String()
	}
	return State{
		Dataset:      snap.Dataset,
		Subscription: subscription,
		Layout:       Layout(snap.Layout),
		Preference:   Layout(snap.Preference),
		Collections:  fromInternalCollections(snap.Collections, snap.Classes),
		NewAttribute: snap.NewAttribute,
		Pending:      append([]string(nil), snap.Pending...),
		Stale:        snap.Stale,
		StaleReason:  snap.StaleReason,
		Warnings:     warnings,
		Lineage:      l.CaseIDs(),
	}
}

func fromInternalInfos(infos []domds.Info) []DatasetInfo {
	out := make([]DatasetInfo, len(infos))
	for i, in := range infos {
		out[i] = DatasetInfo{ID: in.ID, Name: in.Name, Title: in.Title}
	}
	return out
}

func fromInternalPlan(p *domrel.Plan) *MovePlan {
	if p == nil {
		return nil
	}
	return &MovePlan{
		Kind:              string(p.Kind),
		AttrClientID:      p.Attr.ClientID,
		SourceCollection:  p.Source.Name,
		TargetCollection:  p.Target.Name,
		Position:          p.Position,
		NewCollectionName: p.NewCollectionName,
	}
}

func toInternalDrop(d Drop) (domrel.Source, domrel.Target, domrel.Side, domrel.Geometry) {
	side := domrel.Left
	if d.Right {
		side = domrel.Right
	}
	target := d.TargetCollectionID
	if target == "" && !d.NewCollection {
		target = strconv.Itoa(d.SourceCollectionID)
	}
	return domrel.Source{CollectionID: d.SourceCollectionID, AttrClientID: d.AttrClientID},
		domrel.Target{CollectionID: target, AttrClientID: d.TargetAttrClientID, NewCollection: d.NewCollection},
		side,
		domrel.Geometry{DraggedTop: d.DraggedTop, DeltaY: d.DeltaY, TargetTop: d.TargetTop, TargetHeight: d.TargetHeight}
}

func toInternalNotification(n Notification) host.Notification {
	return host.Notification{Resource: n.Resource, Values: n.Values}
}
