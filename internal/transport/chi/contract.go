package chi

import (
	"context"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/host"
	healthuc "github.com/kailas-cloud/casetable/internal/usecase/health"
	"github.com/kailas-cloud/casetable/internal/usecase/model"
	"github.com/kailas-cloud/casetable/internal/usecase/synchronizer"
)

// Model is the collections model as the API drives it.
type Model interface {
	Snapshot() model.Snapshot
	AttrPrecisions() map[string]int
	AttrTypes() map[string]attribute.Type
	AttrVisibilities() map[string]bool
	FindAttributes(query string) []collection.AttrMatch
	AddAttribute(ctx context.Context, collectionName, name string) (attribute.Attribute, error)
	RenameAttribute(ctx context.Context, collectionName string, attrID int, oldName, newName string) error
	EditCaseValue(ctx context.Context, newValue any, caseID int, attrTitle string) (model.EditResult, error)
	AddCollection(ctx context.Context, name string) error
	Sort(ctx context.Context, attrName string, descending bool) error
	SetLayout(ctx context.Context, l layout.Layout) error
	Reload(ctx context.Context) error
}

// Relocator applies attribute drops.
type Relocator interface {
	Move(ctx context.Context, src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry) (*domrel.Plan, error)
}

// Synchronizer owns dataset selection.
type Synchronizer interface {
	SelectDataset(ctx context.Context, name string) error
	Deselect()
	State() synchronizer.State
	Lineage() lineage.Lineage
	RefreshDatasets(ctx context.Context) ([]domds.Info, error)
}

// Dispatcher delivers host notifications to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, n host.Notification) int
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
