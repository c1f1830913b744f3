// Package synchronizer keeps the model in step with host notifications for the
// active dataset and derives the selected-case lineage.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/domain"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	"github.com/kailas-cloud/casetable/internal/host"
	"github.com/kailas-cloud/casetable/internal/metrics"
)

// State is the subscription state for the active dataset.
type State string

// States.
const (
	Unsubscribed State = "unsubscribed"
	Subscribing  State = "subscribing"
	Subscribed   State = "subscribed"
)

// Notification kinds used as metric labels.
const (
	kindSelection  = "selection"
	kindStructural = "structural"
	kindOther      = "other"
	kindDocument   = "document"
)

const defaultReloadTimeout = 30 * time.Second

// maxLoadAttempts bounds how often a selection retries a load that another
// load of the same dataset superseded.
const maxLoadAttempts = 3

// LineageListener receives every published lineage.
type LineageListener func(dataset string, l lineage.Lineage)

// Service owns the dataset subscription lifecycle.
type Service struct {
	client        host.Client
	model         Model
	prefs         Pruner
	reloadTimeout time.Duration
	logger        *zap.Logger

	mu        sync.Mutex
	state     State
	dataset   string
	gen       uint64
	sub       host.Subscription
	docSub    host.Subscription
	lineage   lineage.Lineage
	datasets  []domds.Info
	listeners []LineageListener
	// loading is set while the selection's initial load runs; structural
	// notices arriving meanwhile are queued in queuedOp and replayed after it.
	loading  bool
	queuedOp string
}

// New creates a synchronizer. prefs may be nil.
func New(client host.Client, model Model, prefs Pruner, reloadTimeout time.Duration, logger *zap.Logger) *Service {
	if reloadTimeout <= 0 {
		reloadTimeout = defaultReloadTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:        client,
		model:         model,
		prefs:         prefs,
		reloadTimeout: reloadTimeout,
		logger:        logger,
		state:         Unsubscribed,
	}
}

// Start subscribes to document-level notices and fetches the dataset list.
// A failed initial fetch is logged; the list fills on the next notice.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.client.Subscribe(host.DocumentChangeNotice, s.handleDocument)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", host.DocumentChangeNotice, err)
	}
	s.mu.Lock()
	if s.docSub != nil {
		s.docSub.Cancel()
	}
	s.docSub = sub
	s.mu.Unlock()

	if _, err := s.RefreshDatasets(ctx); err != nil {
		s.logger.Warn("initial dataset list unavailable", zap.Error(err))
	}
	return nil
}

// Stop releases every subscription and discards the active dataset.
func (s *Service) Stop() {
	s.mu.Lock()
	doc := s.docSub
	s.docSub = nil
	s.mu.Unlock()
	if doc != nil {
		doc.Cancel()
	}
	s.Deselect()
}

// State returns the current subscription state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dataset returns the selected dataset name.
func (s *Service) Dataset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset
}

// Lineage returns the last published lineage, root to leaf.
func (s *Service) Lineage() lineage.Lineage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(lineage.Lineage, len(s.lineage))
	copy(out, s.lineage)
	return out
}

// Datasets returns the last fetched dataset list.
func (s *Service) Datasets() []domds.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domds.Info, len(s.datasets))
	copy(out, s.datasets)
	return out
}

// OnLineage registers fn for lineage updates.
func (s *Service) OnLineage(fn LineageListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SelectDataset subscribes to name's notifications and loads it. Any previous
// subscription is cancelled first so its notices can no longer reach the model.
func (s *Service) SelectDataset(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("select dataset: %w", domain.ErrEmptyName)
	}

	s.mu.Lock()
	prev := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	s.state = Subscribing
	s.dataset = name
	s.lineage = nil
	s.loading = true
	s.queuedOp = ""
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	sub, err := s.client.Subscribe(host.DataContextChangeNotice(name), s.handlerFor(gen, name))
	if err != nil {
		s.reset(gen)
		return fmt.Errorf("subscribe %s: %w", name, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		sub.Cancel()
		return fmt.Errorf("select dataset %s: %w", name, domain.ErrSuperseded)
	}
	s.sub = sub
	s.state = Subscribed
	s.mu.Unlock()

	if err := s.loadSelected(ctx, gen, name); err != nil {
		if s.reset(gen) {
			sub.Cancel()
			s.model.Discard()
		}
		return fmt.Errorf("select dataset %s: %w", name, err)
	}
	s.logger.Info("dataset selected", zap.String("dataset", name))

	for op := s.takeQueued(gen); op != ""; op = s.takeQueued(gen) {
		s.reload(ctx, name, op)
	}
	return nil
}

// loadSelected loads name, retrying while a concurrent load of the same
// dataset supersedes it and gen is still the active selection.
func (s *Service) loadSelected(ctx context.Context, gen uint64, name string) error {
	var err error
	for range maxLoadAttempts {
		err = s.model.Load(ctx, name)
		if !errors.Is(err, domain.ErrSuperseded) || !s.current(gen) {
			return err
		}
	}
	return err
}

// takeQueued pops the structural operation queued during the load of gen.
// An empty result ends the loading phase.
func (s *Service) takeQueued(gen uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ""
	}
	op := s.queuedOp
	s.queuedOp = ""
	s.loading = op != ""
	return op
}

// reset returns to Unsubscribed if gen is still current.
func (s *Service) reset(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.sub = nil
	s.state = Unsubscribed
	s.dataset = ""
	s.lineage = nil
	s.loading = false
	s.queuedOp = ""
	return true
}

// Deselect cancels the dataset subscription and discards the model.
func (s *Service) Deselect() {
	s.mu.Lock()
	prev := s.sub
	had := s.dataset
	s.sub = nil
	s.gen++
	s.state = Unsubscribed
	s.dataset = ""
	s.lineage = nil
	s.loading = false
	s.queuedOp = ""
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	s.model.Discard()
	if had != "" {
		s.logger.Info("dataset deselected", zap.String("dataset", had))
	}
}

// current reports whether gen still names the active subscription.
func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state != Unsubscribed
}

func (s *Service) handlerFor(gen uint64, dataset string) host.Handler {
	return func(ctx context.Context, n host.Notification) {
		if name, ok := host.DatasetOf(n.Resource); ok && name != dataset {
			s.drop(dataset, n.Resource)
			return
		}
		if !s.current(gen) {
			s.drop(dataset, n.Resource)
			return
		}

		notices, err := host.DecodeChangeNotice(n.Values)
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(kindOther, "error").Inc()
			s.logger.Warn("undecodable notification", zap.String("resource", n.Resource), zap.Error(err))
			return
		}

		structural := ""
		for _, notice := range notices {
			switch {
			case notice.Operation.IsSelection():
				s.applySelection(gen, dataset, notice)
			case notice.Operation.IsStructural():
				structural = string(notice.Operation)
			default:
				metrics.NotificationsTotal.WithLabelValues(kindOther, "ignored").Inc()
			}
		}
		if structural != "" {
			s.applyStructural(ctx, gen, dataset, structural)
		}
	}
}

func (s *Service) drop(dataset, resource string) {
	metrics.NotificationsTotal.WithLabelValues(kindOther, "stale").Inc()
	s.logger.Debug("stale notification dropped",
		zap.String("dataset", dataset),
		zap.String("resource", resource),
		zap.Error(domain.ErrStaleNotification),
	)
}

// applySelection publishes the lineage of the first selected case. An empty
// selection publishes an empty lineage.
func (s *Service) applySelection(gen uint64, dataset string, notice host.ChangeNotice) {
	var l lineage.Lineage
	if cases := notice.Result.Cases; len(cases) > 0 {
		l = lineage.Compute(s.model.Collections(), cases[0].ID)
		if len(l) == 0 {
			s.logger.Debug("selected case not in local tree",
				zap.String("dataset", dataset),
				zap.Int("case_id", cases[0].ID),
				zap.Error(domain.ErrUnresolvable),
			)
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		metrics.NotificationsTotal.WithLabelValues(kindSelection, "stale").Inc()
		return
	}
	s.lineage = l
	listeners := make([]LineageListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(kindSelection, "applied").Inc()
	for _, fn := range listeners {
		fn(dataset, l)
	}
}

// applyStructural re-ingests the subscribed dataset. While the selection's
// own load is running the reload is queued behind it.
func (s *Service) applyStructural(ctx context.Context, gen uint64, dataset, op string) {
	s.logger.Info("structural change, reloading",
		zap.String("dataset", dataset),
		zap.String("operation", op),
		zap.Error(domain.ErrStructuralDrift),
	)
	s.mu.Lock()
	if s.gen != gen || s.state == Unsubscribed {
		s.mu.Unlock()
		metrics.NotificationsTotal.WithLabelValues(kindStructural, "stale").Inc()
		return
	}
	if s.loading {
		s.queuedOp = op
		s.mu.Unlock()
		metrics.NotificationsTotal.WithLabelValues(kindStructural, "queued").Inc()
		return
	}
	s.mu.Unlock()
	s.reload(ctx, dataset, op)
}

// reload marks the model stale and loads dataset again. The reload outlives
// the delivering request but not the reload timeout.
func (s *Service) reload(ctx context.Context, dataset, op string) {
	s.model.MarkStale(op)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reloadTimeout)
	defer cancel()
	if err := s.model.Load(rctx, dataset); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kindStructural, "error").Inc()
		s.logger.Warn("reload after structural change failed",
			zap.String("dataset", dataset),
			zap.String("operation", op),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(kindStructural, "applied").Inc()
}

// handleDocument refreshes the dataset list, deselects a vanished active
// dataset and prunes preferences of deleted ones.
func (s *Service) handleDocument(ctx context.Context, n host.Notification) {
	infos, err := s.RefreshDatasets(ctx)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(kindDocument, "error").Inc()
		s.logger.Warn("dataset list refresh failed", zap.String("resource", n.Resource), zap.Error(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues(kindDocument, "applied").Inc()

	if active := s.Dataset(); active != "" && !domds.Contains(infos, active) {
		s.logger.Info("active dataset no longer listed", zap.String("dataset", active))
		s.Deselect()
	}

	if s.prefs == nil {
		return
	}
	removed, err := s.prefs.Prune(ctx, domds.Names(infos))
	if err != nil {
		s.logger.Warn("preference prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned preferences of deleted datasets", zap.Int("removed", removed))
	}
}

// RefreshDatasets fetches the dataset list and caches it.
func (s *Service) RefreshDatasets(ctx context.Context) ([]domds.Info, error) {
	infos, err := s.model.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.datasets = infos
	s.mu.Unlock()
	return infos, nil
}
