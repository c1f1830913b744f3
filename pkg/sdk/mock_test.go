package casetable

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

// --- modelUseCase mock ---

type mockModel struct {
	snap         model.Snapshot
	findFn       func(q string) []collection.AttrMatch
	addFn        func(ctx context.Context, col, name string) (attribute.Attribute, error)
	renameFn     func(ctx context.Context, col string, id int, oldName, newName string) error
	editFn       func(ctx context.Context, v any, caseID int, title string) (model.EditResult, error)
	collectionFn func(ctx context.Context, name string) error
	sortFn       func(ctx context.Context, attr string, desc bool) error
	layoutFn     func(ctx context.Context, l layout.Layout) error
	reloadFn     func(ctx context.Context) error
}

func (m *mockModel) Snapshot() model.Snapshot { return m.snap }

func (m *mockModel) FindAttributes(q string) []collection.AttrMatch { return m.findFn(q) }

func (m *mockModel) AddAttribute(ctx context.Context, col, name string) (attribute.Attribute, error) {
	return m.addFn(ctx, col, name)
}

func (m *mockModel) RenameAttribute(ctx context.Context, col string, id int, oldName, newName string) error {
	return m.renameFn(ctx, col, id, oldName, newName)
}

func (m *mockModel) EditCaseValue(ctx context.Context, v any, caseID int, title string) (model.EditResult, error) {
	return m.editFn(ctx, v, caseID, title)
}

func (m *mockModel) AddCollection(ctx context.Context, name string) error {
	return m.collectionFn(ctx, name)
}

func (m *mockModel) Sort(ctx context.Context, attr string, desc bool) error {
	return m.sortFn(ctx, attr, desc)
}

func (m *mockModel) SetLayout(ctx context.Context, l layout.Layout) error {
	return m.layoutFn(ctx, l)
}

func (m *mockModel) Reload(ctx context.Context) error {
	return m.reloadFn(ctx)
}

// --- relocationUseCase mock ---

type mockRelocator struct {
	moveFn func(src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry) (*domrel.Plan, error)
}

func (m *mockRelocator) Move(
	_ context.Context, src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry,
) (*domrel.Plan, error) {
	return m.moveFn(src, tgt, side, geom)
}

// --- syncUseCase mock ---

type mockSync struct {
	selectFn func(ctx context.Context, name string) error
	listFn   func(ctx context.Context) ([]domds.Info, error)
	state    synchronizer.State
	lineage  lineage.Lineage
	stopped  bool
}

func (m *mockSync) SelectDataset(ctx context.Context, name string) error { return m.selectFn(ctx, name) }
func (m *mockSync) Deselect()                                            {}
func (m *mockSync) State() synchronizer.State                            { return m.state }
func (m *mockSync) Lineage() lineage.Lineage                             { return m.lineage }
func (m *mockSync) Stop()                                                { m.stopped = true }

func (m *mockSync) RefreshDatasets(ctx context.Context) ([]domds.Info, error) {
	return m.listFn(ctx)
}

// --- notificationDispatcher mock ---

type mockDispatcher struct {
	got []host.Notification
}

func (m *mockDispatcher) Dispatch(_ context.Context, n host.Notification) int {
	m.got = append(m.got, n)
	return 1
}

// --- healthUseCase mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- helpers ---

func testClient(m modelUseCase, r relocationUseCase, s syncUseCase) *Client {
	return &Client{model: m, relocator: r, sync: s, dispatcher: &mockDispatcher{}}
}
