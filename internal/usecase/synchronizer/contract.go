package synchronizer

import (
	"context"

	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
)

// Model is the collections model the synchronizer drives.
type Model interface {
	Load(ctx context.Context, dataset string) error
	Discard()
	MarkStale(reason string)
	Collections() []collection.Collection
	Datasets(ctx context.Context) ([]domds.Info, error)
}

// Pruner drops stored preferences of datasets that no longer exist.
type Pruner interface {
	Prune(ctx context.Context, keep []string) (int, error)
}
