package relocation

import (
	"context"

	"github.com/kailas-cloud/casetable/internal/domain/collection"
)

// Repository is the host side of an attribute move.
type Repository interface {
	MoveAttribute(ctx context.Context, dataset, sourceCollection, attrName, targetCollection string, position int) error
	CreateCollection(ctx context.Context, dataset, name, parent string, attrNames []string) error
}

// Model is the part of the collections model the engine patches.
type Model interface {
	Current() (string, []collection.Collection)
	Dataset() string
	PlaceAttribute(clientID string, collectionID, index int) bool
	Reload(ctx context.Context) error
	MarkStale(reason string)
}
