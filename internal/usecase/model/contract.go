package model

import (
	"context"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/casetree"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
)

// Repository is the host-side contract of the model.
type Repository interface {
	ListDataContexts(ctx context.Context) ([]domds.Info, error)
	LoadLevels(ctx context.Context, dataset string) ([]casetree.Level, error)
	CreateAttribute(ctx context.Context, dataset, collectionName, name string) (attribute.Attribute, error)
	RenameAttribute(ctx context.Context, dataset, collectionName, oldName, newName string) error
	UpdateCaseValue(ctx context.Context, dataset string, caseID int, attrName string, v any) (any, error)
	CreateCollection(ctx context.Context, dataset, name, parent string, attrNames []string) error
	Sort(ctx context.Context, dataset, attrName string, descending bool) error
}

// PreferenceStore persists the layout choice per dataset.
type PreferenceStore interface {
	Layout(ctx context.Context, dataset string) (layout.Layout, error)
	SetLayout(ctx context.Context, dataset string, l layout.Layout) error
}
