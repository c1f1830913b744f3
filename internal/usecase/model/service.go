// Package model owns the collections of the active dataset and every mutation
// that must stay consistent with the host.
package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/casetree"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/sequence"
	"github.com/kailas-cloud/casetable/internal/domain/value"
	"github.com/kailas-cloud/casetable/internal/metrics"
)

// loadKey sequences full loads across datasets: only the latest load may ingest.
const loadKey = "load"

// Service is the single mutable source of truth for the active dataset.
// The lock is never held across a host round trip.
type Service struct {
	repo   Repository
	prefs  PreferenceStore
	seq    *sequence.Tracker
	logger *zap.Logger

	mu          sync.RWMutex
	dataset     string
	requested   string
	generation  uint64
	cols        []collection.Collection
	cases       map[int]*collection.Case
	classes     layout.ClassMap
	preference  layout.Layout
	warnings    []casetree.Warning
	stale       bool
	staleReason string
	derived     *derivedMaps
	// confirmed holds the last host-confirmed value of cells with edits in flight.
	confirmed map[string]value.Value
}

// New creates an empty model. prefs may be nil; the layout choice then lives in memory only.
func New(repo Repository, prefs PreferenceStore, seq *sequence.Tracker, logger *zap.Logger) *Service {
	if seq == nil {
		seq = sequence.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		prefs:     prefs,
		seq:       seq,
		logger:    logger,
		cases:     make(map[int]*collection.Case),
		confirmed: make(map[string]value.Value),
	}
}

// Dataset returns the active dataset name, "" when none is loaded.
func (s *Service) Dataset() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Collections returns a deep copy of the current collections.
func (s *Service) Collections() []collection.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collection.CloneAll(s.cols)
}

// Current returns the active dataset and a deep copy of its collections.
func (s *Service) Current() (string, []collection.Collection) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, collection.CloneAll(s.cols)
}

// FindAttributes fuzzy-searches attribute names of the loaded dataset.
func (s *Service) FindAttributes(query string) []collection.AttrMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collection.FindAttributes(s.cols, query)
}

// Datasets lists the host's datasets.
func (s *Service) Datasets(ctx context.Context) ([]domds.Info, error) {
	infos, err := s.repo.ListDataContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return infos, nil
}

// Load fetches dataset in full and replaces the model with it.
func (s *Service) Load(ctx context.Context, dataset string) error {
	if dataset == "" {
		return fmt.Errorf("load: %w", domain.ErrEmptyName)
	}
	n := s.seq.Next(loadKey)
	defer s.seq.Done(loadKey, n)
	s.mu.Lock()
	s.requested = dataset
	s.mu.Unlock()

	levels, err := s.repo.LoadLevels(ctx, dataset)
	if err != nil {
		return fmt.Errorf("load %s: %w", dataset, err)
	}

	var pref *layout.Layout
	if s.prefs != nil {
		l, err := s.prefs.Layout(ctx, dataset)
		if err != nil {
			s.logger.Warn("layout preference unavailable", zap.String("dataset", dataset), zap.Error(err))
		} else {
			pref = &l
		}
	}

	if !s.seq.IsLatest(loadKey, n) {
		return fmt.Errorf("load %s: %w", dataset, domain.ErrSuperseded)
	}
	return s.ingest(dataset, levels, pref)
}

// Ingest replaces the model wholesale with levels of dataset.
func (s *Service) Ingest(dataset string, levels []casetree.Level) error {
	return s.ingest(dataset, levels, nil)
}

func (s *Service) ingest(dataset string, levels []casetree.Level, pref *layout.Layout) error {
	res, err := casetree.Build(levels)
	if err != nil {
		s.MarkStale(err.Error())
		return fmt.Errorf("ingest %s: %w", dataset, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dataset != s.dataset {
		s.generation++
		s.confirmed = make(map[string]value.Value)
		s.preference = layout.Unselected
	} else {
		preserveClientIDs(s.cols, res.Collections)
	}
	if pref != nil {
		s.preference = *pref
	}

	s.dataset = dataset
	s.cols = res.Collections
	s.cases = collection.IndexCases(s.cols)
	s.classes = layout.NewClassMap(s.cols)
	s.warnings = res.Warnings
	s.stale = false
	s.staleReason = ""
	s.derived = nil

	metrics.CasesLoaded.Set(float64(len(s.cases)))
	for _, w := range res.Warnings {
		metrics.BuildWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
		s.logger.Warn("case tree inconsistency skipped",
			zap.String("dataset", dataset),
			zap.String("warning", w.String()),
		)
	}
	s.logger.Info("dataset ingested",
		zap.String("dataset", dataset),
		zap.Int("collections", len(s.cols)),
		zap.Int("cases", len(s.cases)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return nil
}

// preserveClientIDs carries client ids over to re-fetched attributes with the same host id.
func preserveClientIDs(prev, next []collection.Collection) {
	byHostID := make(map[int]string)
	for _, c := range prev {
		for _, a := range c.Attrs {
			if a.ID != 0 {
				byHostID[a.ID] = a.ClientID
			}
		}
	}
	for ci := range next {
		for ai := range next[ci].Attrs {
			a := &next[ci].Attrs[ai]
			if cid, ok := byHostID[a.ID]; ok && a.ID != 0 {
				a.ClientID = cid
			}
		}
	}
}

// SetCollections replaces the collection list without a host fetch.
// The caller guarantees cols is structurally valid.
func (s *Service) SetCollections(cols []collection.Collection) {
	cp := collection.CloneAll(cols)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !sameCollectionIDs(s.cols, cp) {
		s.classes = layout.NewClassMap(cp)
	}
	s.cols = cp
	s.cases = collection.IndexCases(cp)
	s.derived = nil
}

// PlaceAttribute moves one attribute of the current state to index of the
// collection with collectionID. Case values and the other attributes are left
// as they are. It reports false when either side no longer exists.
func (s *Service) PlaceAttribute(clientID string, collectionID, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !collection.PlaceAttribute(s.cols, clientID, collectionID, index) {
		return false
	}
	s.derived = nil
	return true
}

func sameCollectionIDs(a, b []collection.Collection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// active returns the dataset and generation a host request is issued for.
func (s *Service) active() (string, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dataset == "" {
		return "", 0, domain.ErrNoDataset
	}
	return s.dataset, s.generation, nil
}

// AddAttribute asks the host to create an attribute and appends it locally on success.
func (s *Service) AddAttribute(ctx context.Context, collectionName, name string) (attribute.Attribute, error) {
	if err := attribute.ValidateName(name); err != nil {
		return attribute.Attribute{}, fmt.Errorf("add attribute: %w", err)
	}
	ds, gen, err := s.active()
	if err != nil {
		return attribute.Attribute{}, fmt.Errorf("add attribute: %w", err)
	}
	s.mu.RLock()
	ci := collection.IndexByName(s.cols, collectionName)
	s.mu.RUnlock()
	if ci < 0 {
		return attribute.Attribute{}, fmt.Errorf("add attribute: collection %q: %w", collectionName, domain.ErrUnresolvable)
	}

	key := sequence.CollectionKey(collectionName)
	n := s.seq.Next(key)
	a, err := s.repo.CreateAttribute(ctx, ds, collectionName, name)
	s.seq.Done(key, n)
	if err != nil {
		return attribute.Attribute{}, fmt.Errorf("add attribute: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return a, fmt.Errorf("add attribute: %w", domain.ErrSuperseded)
	}
	ci = collection.IndexByName(s.cols, collectionName)
	if ci < 0 {
		return a, nil
	}
	if a.ID != 0 {
		if ai := s.cols[ci].AttrIndexByID(a.ID); ai >= 0 {
			// A reload already brought it in.
			return s.cols[ci].Attrs[ai].Clone(), nil
		}
	}
	s.cols[ci].Attrs = append(s.cols[ci].Attrs, a)
	s.derived = nil
	return a.Clone(), nil
}

// RenameAttribute renames an attribute once the host confirms. Local state is
// untouched until then, so a rejection leaves the old name in place.
func (s *Service) RenameAttribute(ctx context.Context, collectionName string, attrID int, oldName, newName string) error {
	if newName == oldName {
		return nil
	}
	if err := attribute.ValidateName(newName); err != nil {
		return fmt.Errorf("rename attribute: %w", err)
	}
	ds, gen, err := s.active()
	if err != nil {
		return fmt.Errorf("rename attribute: %w", err)
	}

	s.mu.RLock()
	clientID := ""
	if ci := collection.IndexByName(s.cols, collectionName); ci >= 0 {
		ai := s.cols[ci].AttrIndexByID(attrID)
		if ai < 0 {
			ai = attrIndexByName(s.cols[ci], oldName)
		}
		if ai >= 0 {
			clientID = s.cols[ci].Attrs[ai].ClientID
		}
	}
	s.mu.RUnlock()
	if clientID == "" {
		return fmt.Errorf("rename attribute %q in %q: %w", oldName, collectionName, domain.ErrUnresolvable)
	}

	key := sequence.AttributeKey(clientID)
	n := s.seq.Next(key)
	err = s.repo.RenameAttribute(ctx, ds, collectionName, oldName, newName)
	s.seq.Done(key, n)
	if err != nil {
		return fmt.Errorf("rename attribute: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || !s.seq.IsLatest(key, n) {
		return fmt.Errorf("rename attribute: %w", domain.ErrSuperseded)
	}
	for ci := range s.cols {
		ai := s.cols[ci].AttrIndexByClientID(clientID)
		if ai < 0 {
			continue
		}
		a := &s.cols[ci].Attrs[ai]
		prev := a.Name
		a.Rename(newName)
		rekeyValues(s.cols[ci].Cases, prev, newName)
		s.derived = nil
		break
	}
	return nil
}

func attrIndexByName(c collection.Collection, name string) int {
	for i, a := range c.Attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func rekeyValues(cases []*collection.Case, from, to string) {
	if from == to {
		return
	}
	for _, cs := range cases {
		v, ok := cs.Values[from]
		if !ok {
			continue
		}
		delete(cs.Values, from)
		cs.Values[to] = v
	}
}

// EditCaseValue shows newValue immediately and settles on whatever the host
// stores. Only the latest issued edit of a cell may settle it; an older
// response returns ErrSuperseded and leaves the cell alone.
func (s *Service) EditCaseValue(ctx context.Context, newValue any, caseID int, attrTitle string) (EditResult, error) {
	ds, gen, err := s.active()
	if err != nil {
		return EditResult{}, fmt.Errorf("edit case value: %w", err)
	}

	s.mu.Lock()
	cs, ok := s.cases[caseID]
	if !ok {
		s.mu.Unlock()
		return EditResult{}, fmt.Errorf("edit case %d: %w", caseID, domain.ErrUnresolvable)
	}
	ci := collection.IndexByID(s.cols, cs.Collection.ID)
	ai := -1
	if ci >= 0 {
		ai = s.cols[ci].AttrIndexByTitle(attrTitle)
		if ai < 0 {
			ai = attrIndexByName(s.cols[ci], attrTitle)
		}
	}
	if ai < 0 {
		s.mu.Unlock()
		return EditResult{}, fmt.Errorf("edit case %d attribute %q: %w", caseID, attrTitle, domain.ErrUnresolvable)
	}
	attr := s.cols[ci].Attrs[ai].Clone()
	if !attr.Editable {
		s.mu.Unlock()
		return EditResult{}, fmt.Errorf("%w: attribute %q is not editable", domain.ErrValidation, attr.Name)
	}

	key := sequence.CaseKey(caseID, attr.Name)
	n := s.seq.Next(key)
	if _, ok := s.confirmed[key]; !ok {
		s.confirmed[key] = cs.Values[attr.Name]
	}
	s.setCellLocked(caseID, attr.Name, value.New(newValue, attr.Precision))
	s.mu.Unlock()

	stored, err := s.repo.UpdateCaseValue(ctx, ds, caseID, attr.Name, newValue)
	s.seq.Done(key, n)

	s.mu.Lock()
	defer s.mu.Unlock()
	res := EditResult{CaseID: caseID, Attr: attr.Name}
	if s.generation != gen {
		return res, fmt.Errorf("edit case %d: %w", caseID, domain.ErrSuperseded)
	}
	latest := s.seq.IsLatest(key, n)

	if err != nil {
		if latest {
			restore := s.confirmed[key]
			delete(s.confirmed, key)
			s.setCellLocked(caseID, attr.Name, restore)
			res.Value = restore
		}
		return res, fmt.Errorf("edit case value: %w", err)
	}

	v := value.New(stored, attr.Precision)
	res.Value = v
	if !latest {
		if s.seq.IsPending(key) {
			s.confirmed[key] = v
		}
		return res, fmt.Errorf("edit case %d: %w", caseID, domain.ErrSuperseded)
	}
	delete(s.confirmed, key)
	s.setCellLocked(caseID, attr.Name, v)
	return res, nil
}

func (s *Service) setCellLocked(caseID int, attrName string, v value.Value) {
	cs, ok := s.cases[caseID]
	if !ok {
		return
	}
	if cs.Values == nil {
		cs.Values = make(map[string]value.Value)
	}
	cs.Values[attrName] = v
}

// AddCollection creates a child collection under the current leaf and reloads.
// Empty and duplicate names are rejected before any host request.
func (s *Service) AddCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("add collection: %w", domain.ErrEmptyName)
	}
	ds, _, err := s.active()
	if err != nil {
		return fmt.Errorf("add collection: %w", err)
	}

	s.mu.RLock()
	dup := false
	parent := ""
	for _, c := range s.cols {
		if c.Name == name || c.Title == name {
			dup = true
		}
		parent = c.Name
	}
	s.mu.RUnlock()
	if dup {
		return fmt.Errorf("add collection %q: %w", name, domain.ErrDuplicateName)
	}

	key := sequence.CollectionKey(name)
	n := s.seq.Next(key)
	err = s.repo.CreateCollection(ctx, ds, name, parent, nil)
	s.seq.Done(key, n)
	if err != nil {
		return fmt.Errorf("add collection: %w", err)
	}
	return s.Reload(ctx)
}

// Sort asks the host to sort the dataset. The tree changes when the host's
// echo triggers a reload.
func (s *Service) Sort(ctx context.Context, attrName string, descending bool) error {
	ds, _, err := s.active()
	if err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	s.mu.RLock()
	name := ""
	for _, c := range s.cols {
		for _, a := range c.Attrs {
			if a.Name == attrName || a.Title == attrName {
				name = a.Name
			}
		}
	}
	s.mu.RUnlock()
	if name == "" {
		return fmt.Errorf("sort by %q: %w", attrName, domain.ErrUnresolvable)
	}

	key := sequence.DatasetKey(ds)
	n := s.seq.Next(key)
	defer s.seq.Done(key, n)
	if err := s.repo.Sort(ctx, ds, name, descending); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	return nil
}

// SetLayout stores the user's layout choice for the active dataset.
func (s *Service) SetLayout(ctx context.Context, l layout.Layout) error {
	if !l.IsChoosable() {
		return fmt.Errorf("%w: layout %s cannot be chosen", domain.ErrValidation, l)
	}
	ds, gen, err := s.active()
	if err != nil {
		return fmt.Errorf("set layout: %w", err)
	}
	if s.prefs != nil {
		if err := s.prefs.SetLayout(ctx, ds, l); err != nil {
			return fmt.Errorf("set layout: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return fmt.Errorf("set layout: %w", domain.ErrSuperseded)
	}
	s.preference = l
	return nil
}

// Layout resolves the rendering strategy for the current tree.
func (s *Service) Layout() layout.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layout.Select(len(s.cols), s.preference)
}

func (s *Service) derivedMaps() *derivedMaps {
	s.mu.RLock()
	d := s.derived
	s.mu.RUnlock()
	if d != nil {
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.derived == nil {
		s.derived = deriveMaps(s.cols)
	}
	return s.derived
}

// AttrPrecisions maps attribute name to precision for attributes that declare one.
func (s *Service) AttrPrecisions() map[string]int {
	return copyMap(s.derivedMaps().precisions)
}

// AttrTypes maps attribute name to its type; attribute.None stands for no type.
func (s *Service) AttrTypes() map[string]attribute.Type {
	return copyMap(s.derivedMaps().types)
}

// AttrVisibilities maps attribute name to whether it is shown.
func (s *Service) AttrVisibilities() map[string]bool {
	return copyMap(s.derivedMaps().visibilities)
}

// Snapshot copies the state for rendering.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	warnings := make([]casetree.Warning, len(s.warnings))
	copy(warnings, s.warnings)
	return Snapshot{
		Dataset:      s.dataset,
		Collections:  collection.CloneAll(s.cols),
		Layout:       layout.Select(len(s.cols), s.preference),
		Preference:   s.preference,
		Classes:      s.classes.Tokens(),
		NewAttribute: newAttributeOf(s.cols),
		Pending:      s.seq.Pending(),
		Stale:        s.stale,
		StaleReason:  s.staleReason,
		Warnings:     warnings,
	}
}

// MarkStale flags local state as out of date until the next ingest.
func (s *Service) MarkStale(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == "" {
		return
	}
	s.stale = true
	s.staleReason = reason
	s.logger.Info("model marked stale", zap.String("dataset", s.dataset), zap.String("reason", reason))
}

// Reload re-ingests the dataset most recently asked for, which is the one
// still loading during a switch and the active one otherwise.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.RLock()
	ds := s.requested
	s.mu.RUnlock()
	if ds == "" {
		return fmt.Errorf("reload: %w", domain.ErrNoDataset)
	}
	if err := s.Load(ctx, ds); err != nil {
		metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReloadsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Discard drops the active dataset. Responses to requests issued before the
// call no longer touch state.
func (s *Service) Discard() {
	s.mu.Lock()
	s.dataset = ""
	s.requested = ""
	s.generation++
	s.cols = nil
	s.cases = make(map[int]*collection.Case)
	s.classes = layout.ClassMap{}
	s.preference = layout.Unselected
	s.warnings = nil
	s.stale = false
	s.staleReason = ""
	s.derived = nil
	s.confirmed = make(map[string]value.Value)
	s.mu.Unlock()

	s.seq.Invalidate()
	metrics.CasesLoaded.Set(0)
}
