// Package relocation applies drag-and-drop attribute moves to the model and the host.
package relocation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/domain"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/domain/sequence"
)

// Engine turns a drop into exactly one host request.
// Reorders and transfers move the attribute locally before the request and
// move it back if the host fails; promotions wait for the host and reload.
type Engine struct {
	repo   Repository
	model  Model
	seq    *sequence.Tracker
	logger *zap.Logger
}

// New creates an engine. seq should be the tracker the model uses.
func New(repo Repository, model Model, seq *sequence.Tracker, logger *zap.Logger) *Engine {
	if seq == nil {
		seq = sequence.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, model: model, seq: seq, logger: logger}
}

// Move plans and applies a drop. A nil plan with a nil error means the drop changes nothing.
func (e *Engine) Move(
	ctx context.Context, src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry,
) (*domrel.Plan, error) {
	ds, cols := e.model.Current()
	if ds == "" {
		return nil, fmt.Errorf("move attribute: %w", domain.ErrNoDataset)
	}
	plan := domrel.PlanMove(cols, src, tgt, side, geom)
	if plan == nil {
		return nil, nil
	}

	key := sequence.AttributeKey(plan.Attr.ClientID)
	n := e.seq.Next(key)
	defer e.seq.Done(key, n)

	if plan.NeedsReload() {
		return plan, e.promote(ctx, ds, plan)
	}

	clientID := plan.Attr.ClientID
	e.model.PlaceAttribute(clientID, plan.Target.ID, plan.TargetIndex)
	err := e.repo.MoveAttribute(ctx, ds, plan.Source.Name, plan.Attr.Name, plan.Target.Name, plan.Position)
	if err == nil {
		return plan, nil
	}

	// Only the moved attribute goes back; edits that landed meanwhile stay.
	if e.seq.IsLatest(key, n) && e.model.Dataset() == ds {
		e.model.PlaceAttribute(clientID, plan.Source.ID, plan.SourceIndex)
		e.logger.Warn("attribute move reverted",
			zap.String("dataset", ds),
			zap.String("attribute", plan.Attr.Name),
			zap.String("kind", string(plan.Kind)),
			zap.Error(err),
		)
	}
	return plan, fmt.Errorf("move attribute %q: %w", plan.Attr.Name, err)
}

func (e *Engine) promote(ctx context.Context, ds string, plan *domrel.Plan) error {
	parent := ""
	if !plan.RootParent {
		parent = plan.Target.Name
	}
	if err := e.repo.CreateCollection(ctx, ds, plan.NewCollectionName, parent, []string{plan.Attr.Name}); err != nil {
		return fmt.Errorf("promote attribute %q: %w", plan.Attr.Name, err)
	}
	if err := e.model.Reload(ctx); err != nil {
		e.model.MarkStale("reload after promote failed")
		return fmt.Errorf("reload after promote: %w", err)
	}
	return nil
}
