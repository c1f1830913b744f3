package casetable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/db"
	"github.com/kailas-cloud/casetable/internal/db/memory"
	dbRedis "github.com/kailas-cloud/casetable/internal/db/redis"
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/domain/sequence"
	"github.com/kailas-cloud/casetable/internal/host"
	datasetrepo "github.com/kailas-cloud/casetable/internal/repository/dataset"
	preferencerepo "github.com/kailas-cloud/casetable/internal/repository/preference"
	"github.com/kailas-cloud/casetable/internal/transport/bridge"
	healthuc "github.com/kailas-cloud/casetable/internal/usecase/health"
	"github.com/kailas-cloud/casetable/internal/usecase/model"
	"github.com/kailas-cloud/casetable/internal/usecase/relocation"
	"github.com/kailas-cloud/casetable/internal/usecase/synchronizer"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultRequestTimeout   = 10 * time.Second
	defaultReloadTimeout    = 30 * time.Second
	defaultKeyPrefix        = "casetable:"
)

// Internal interfaces, swapped for mocks in tests.
type modelUseCase interface {
	Snapshot() model.Snapshot
	FindAttributes(query string) []collection.AttrMatch
	AddAttribute(ctx context.Context, collectionName, name string) (attribute.Attribute, error)
	RenameAttribute(ctx context.Context, collectionName string, attrID int, oldName, newName string) error
	EditCaseValue(ctx context.Context, newValue any, caseID int, attrTitle string) (model.EditResult, error)
	AddCollection(ctx context.Context, name string) error
	Sort(ctx context.Context, attrName string, descending bool) error
	SetLayout(ctx context.Context, l layout.Layout) error
	Reload(ctx context.Context) error
}

type relocationUseCase interface {
	Move(ctx context.Context, src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry) (*domrel.Plan, error)
}

type syncUseCase interface {
	SelectDataset(ctx context.Context, name string) error
	Deselect()
	State() synchronizer.State
	Lineage() lineage.Lineage
	RefreshDatasets(ctx context.Context) ([]domds.Info, error)
	Stop()
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, n host.Notification) int
}

// Client is the casetable SDK entry point.
type Client struct {
	store      db.Store
	model      modelUseCase
	relocator  relocationUseCase
	sync       syncUseCase
	dispatcher notificationDispatcher
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a Client, connects the preference store and subscribes to
// document notifications. The provided context is used for the readiness
// check and the initial dataset list.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		requestTimeout: defaultRequestTimeout,
		reloadTimeout:  defaultReloadTimeout,
		keyPrefix:      defaultKeyPrefix,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.bridgeURL == "" {
		return nil, errors.New("casetable: bridge url required (use WithBridge)")
	}
	def, err := layout.Parse(string(cfg.defaultLayout))
	if err != nil {
		return nil, fmt.Errorf("casetable: default layout: %w", err)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("casetable: preference store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	logger := cfg.zapLogger
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := bridge.NewClient(&bridge.Config{
		BaseURL: cfg.bridgeURL,
		Token:   cfg.token,
		Timeout: cfg.requestTimeout,
		Logger:  logger,
	})

	c, err := wireClient(ctx, store, hc, def, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.obs = obs
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "":
		return memory.NewStore(), nil
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("casetable: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("casetable: unknown driver %q", cfg.driver)
	}
}

// hostClient is what the wiring needs from the bridge.
type hostClient interface {
	host.Client
	notificationDispatcher
	healthuc.HostChecker
}

func wireClient(
	ctx context.Context, store db.Store, hc hostClient, def layout.Layout, cfg *clientConfig, logger *zap.Logger,
) (*Client, error) {
	dsRepo := datasetrepo.New(hc, logger)
	if cfg.fetchConcurrency > 0 {
		dsRepo = dsRepo.WithFetchConcurrency(cfg.fetchConcurrency)
	}
	prefRepo := preferencerepo.New(store, cfg.keyPrefix).WithDefault(def)

	seq := sequence.NewTracker()
	modelSvc := model.New(dsRepo, prefRepo, seq, logger)
	relocSvc := relocation.New(dsRepo, modelSvc, seq, logger)
	syncSvc := synchronizer.New(hc, modelSvc, prefRepo, cfg.reloadTimeout, logger)
	if err := syncSvc.Start(ctx); err != nil {
		return nil, fmt.Errorf("casetable: %w", err)
	}

	return &Client{
		store:      store,
		model:      modelSvc,
		relocator:  relocSvc,
		sync:       syncSvc,
		dispatcher: hc,
		healthSvc:  healthuc.New(store, hc, 0),
	}, nil
}

// Close releases subscriptions and the preference store.
func (c *Client) Close() {
	if c.sync != nil {
		c.sync.Stop()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Datasets fetches the host's dataset list.
func (c *Client) Datasets(ctx context.Context) (_ []DatasetInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("datasets", start, err) }()

	infos, err := c.sync.RefreshDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return fromInternalInfos(infos), nil
}

// Select subscribes to a dataset and loads its collections. A previously
// selected dataset is released first.
func (c *Client) Select(ctx context.Context, dataset string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("dataset.select", start, err) }()

	if err = c.sync.SelectDataset(ctx, dataset); err != nil {
		return fmt.Errorf("select dataset: %w", err)
	}
	return nil
}

// Deselect releases the active dataset.
func (c *Client) Deselect() {
	c.sync.Deselect()
}

// State returns a copy of the current table state.
func (c *Client) State() State {
	return fromInternalSnapshot(c.model.Snapshot(), string(c.sync.State()), c.sync.Lineage())
}

// Reload re-fetches the active dataset from the host.
func (c *Client) Reload(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("dataset.reload", start, err) }()

	if err = c.model.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// SetLayout stores the layout choice of the active dataset.
func (c *Client) SetLayout(ctx context.Context, l Layout) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("layout.set", start, err) }()

	parsed, err := layout.Parse(string(l))
	if err != nil {
		return fmt.Errorf("set layout: %w", err)
	}
	if err = c.model.SetLayout(ctx, parsed); err != nil {
		return fmt.Errorf("set layout: %w", err)
	}
	return nil
}

// Deliver hands a host notification to the subscribers and reports how many received it.
func (c *Client) Deliver(ctx context.Context, n Notification) int {
	return c.dispatcher.Dispatch(ctx, toInternalNotification(n))
}

// Collections returns the collection and attribute service.
func (c *Client) Collections() *CollectionService {
	return &CollectionService{model: c.model, relocator: c.relocator, obs: c.obs}
}

// Cases returns the case value service.
func (c *Client) Cases() *CaseService {
	return &CaseService{model: c.model, obs: c.obs}
}
