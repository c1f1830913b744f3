package casetable

import (
	"context"
	"fmt"
	"time"
)

// CollectionService manages collections and their attributes.
type CollectionService struct {
	model     modelUseCase
	relocator relocationUseCase
	obs       *observer
}

// Create adds a child collection below the current leaf.
func (s *CollectionService) Create(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.create", start, err) }()

	if err = s.model.AddCollection(ctx, name); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// AddAttribute creates an attribute at the end of the collection.
func (s *CollectionService) AddAttribute(
	ctx context.Context, collection, name string,
) (_ Attribute, err error) {
	start := time.Now()
	defer func() { s.obs.observe("attribute.create", start, err) }()

	a, err := s.model.AddAttribute(ctx, collection, name)
	if err != nil {
		return Attribute{}, fmt.Errorf("add attribute: %w", err)
	}
	return fromInternalAttribute(a), nil
}

// RenameAttribute renames once the host confirms; a rejection keeps oldName.
func (s *CollectionService) RenameAttribute(
	ctx context.Context, collection string, attrID int, oldName, newName string,
) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("attribute.rename", start, err) }()

	if err = s.model.RenameAttribute(ctx, collection, attrID, oldName, newName); err != nil {
		return fmt.Errorf("rename attribute: %w", err)
	}
	return nil
}

// FindAttributes fuzzy-searches attribute titles of the selected dataset.
// Best matches first. An empty query returns no matches.
func (s *CollectionService) FindAttributes(query string) []AttrMatch {
	return fromInternalMatches(s.model.FindAttributes(query))
}

// MoveAttribute applies a drop. A nil plan means the drop changed nothing.
func (s *CollectionService) MoveAttribute(ctx context.Context, d Drop) (_ *MovePlan, err error) {
	start := time.Now()
	defer func() { s.obs.observe("attribute.move", start, err) }()

	src, tgt, side, geom := toInternalDrop(d)
	plan, err := s.relocator.Move(ctx, src, tgt, side, geom)
	if err != nil {
		return nil, fmt.Errorf("move attribute: %w", err)
	}
	return fromInternalPlan(plan), nil
}
