package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/casetree"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/host"
)

const (
	defaultFetchConcurrency = 8
	rootParent              = "_root_"
)

// Repo implements the model and relocation repository contracts on top of a host.Client.
type Repo struct {
	client      host.Client
	concurrency int
	logger      *zap.Logger
}

// New creates a dataset repository.
func New(client host.Client, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{client: client, concurrency: defaultFetchConcurrency, logger: logger}
}

// WithFetchConcurrency bounds parallel case fetches.
func (r *Repo) WithFetchConcurrency(n int) *Repo {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// call sends req and decodes the response values into out (if non-nil).
func (r *Repo) call(ctx context.Context, req host.Request, out any) error {
	resp, err := r.client.SendRequest(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrTransport) {
			return fmt.Errorf("%s %s: %w", req.Action, req.Resource, err)
		}
		return fmt.Errorf("%s %s: %w: %w", req.Action, req.Resource, domain.ErrTransport, err)
	}
	if !resp.Success {
		return domain.NewHostRejected(req.Resource, rejectionMessage(resp.Values))
	}
	if out == nil || len(resp.Values) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Values, out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", req.Resource, domain.ErrStructuralDrift, err)
	}
	return nil
}

func rejectionMessage(raw json.RawMessage) string {
	var v struct {
		Error string `json:"error"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &v) == nil {
		return v.Error
	}
	return ""
}

// ListDataContexts returns the host's datasets.
func (r *Repo) ListDataContexts(ctx context.Context) ([]domds.Info, error) {
	var out []domds.Info
	if err := r.call(ctx, host.Request{Action: host.Get, Resource: host.DataContextList}, &out); err != nil {
		return nil, fmt.Errorf("list data contexts: %w", err)
	}
	return out, nil
}

// LoadLevels fetches every collection of dataset and all of its cases,
// ordered root to leaf.
func (r *Repo) LoadLevels(ctx context.Context, dataset string) ([]casetree.Level, error) {
	cols, err := r.loadCollections(ctx, dataset)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	levels := make([]casetree.Level, len(cols))
	levelOf := make(map[int]int, len(cols))
	for i, c := range cols {
		levels[i] = casetree.Level{Collection: c, Cases: []casetree.RawCase{}}
		levelOf[c.ID] = i
	}

	roots, err := r.fetchRootCases(ctx, dataset, cols[0].Name)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	frontier := roots
	for len(frontier) > 0 {
		var next []int
		for _, rc := range frontier {
			if seen[rc.ID] {
				continue
			}
			seen[rc.ID] = true
			li, ok := levelOf[rc.CollectionID]
			if !ok {
				r.logger.Warn("case from unknown collection dropped",
					zap.String("dataset", dataset),
					zap.Int("case_id", rc.ID),
					zap.Int("collection_id", rc.CollectionID),
				)
				continue
			}
			levels[li].Cases = append(levels[li].Cases, rc)
			for _, id := range rc.ChildIDs {
				if !seen[id] {
					next = append(next, id)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier, err = r.fetchCasesByID(ctx, dataset, next)
		if err != nil {
			return nil, err
		}
	}

	return levels, nil
}

func (r *Repo) loadCollections(ctx context.Context, dataset string) ([]collection.Collection, error) {
	var infos []collectionInfo
	req := host.Request{Action: host.Get, Resource: host.DataContext(dataset).CollectionList().String()}
	if err := r.call(ctx, req, &infos); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	cols := make([]collection.Collection, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, info := range infos {
		g.Go(func() error {
			var row collectionRow
			req := host.Request{Action: host.Get, Resource: host.DataContext(dataset).Collection(info.Name).String()}
			if err := r.call(gctx, req, &row); err != nil {
				return fmt.Errorf("get collection %s: %w", info.Name, err)
			}
			cols[i] = collectionFromRow(row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ordered, err := collection.OrderByHierarchy(cols)
	if err != nil {
		return nil, fmt.Errorf("order collections: %w", err)
	}
	return ordered, nil
}

func (r *Repo) fetchRootCases(ctx context.Context, dataset, rootName string) ([]casetree.RawCase, error) {
	var count int
	req := host.Request{Action: host.Get, Resource: host.DataContext(dataset).Collection(rootName).CaseCount().String()}
	if err := r.call(ctx, req, &count); err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}

	out := make([]casetree.RawCase, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			var env caseEnvelope
			res := host.DataContext(dataset).Collection(rootName).CaseByIndex(i).String()
			if err := r.call(gctx, host.Request{Action: host.Get, Resource: res}, &env); err != nil {
				return fmt.Errorf("get case %d: %w", i, err)
			}
			out[i] = rawCaseFromRow(env.Case)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) fetchCasesByID(ctx context.Context, dataset string, ids []int) ([]casetree.RawCase, error) {
	out := make([]casetree.RawCase, len(ids))
	found := make([]bool, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			var env caseEnvelope
			res := host.DataContext(dataset).CaseByID(id).String()
			err := r.call(gctx, host.Request{Action: host.Get, Resource: res}, &env)
			if errors.Is(err, domain.ErrHostRejected) {
				// Leave it to the tree builder to report the dangling reference.
				return nil
			}
			if err != nil {
				return fmt.Errorf("get case %d: %w", id, err)
			}
			mu.Lock()
			out[i] = rawCaseFromRow(env.Case)
			found[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cases := make([]casetree.RawCase, 0, len(ids))
	for i, ok := range found {
		if ok {
			cases = append(cases, out[i])
		}
	}
	return cases, nil
}

// CreateAttribute creates an attribute in collectionName and returns it as the host stored it.
func (r *Repo) CreateAttribute(ctx context.Context, dataset, collectionName, name string) (attribute.Attribute, error) {
	var created createdAttrs
	req := host.Request{
		Action:   host.Create,
		Resource: host.DataContext(dataset).Collection(collectionName).AttributeNew().String(),
		Values:   []map[string]string{{"name": name}},
	}
	if err := r.call(ctx, req, &created); err != nil {
		return attribute.Attribute{}, fmt.Errorf("create attribute: %w", err)
	}
	if len(created.Attrs) == 0 {
		return attrFromRow(attrRow{Name: name}), nil
	}
	return attrFromRow(created.Attrs[0]), nil
}

// RenameAttribute renames an attribute.
func (r *Repo) RenameAttribute(ctx context.Context, dataset, collectionName, oldName, newName string) error {
	req := host.Request{
		Action:   host.Update,
		Resource: host.DataContext(dataset).Collection(collectionName).Attribute(oldName).String(),
		Values:   map[string]string{"name": newName, "title": newName},
	}
	if err := r.call(ctx, req, nil); err != nil {
		return fmt.Errorf("rename attribute: %w", err)
	}
	return nil
}

// MoveAttribute moves attrName of sourceCollection to position inside targetCollection.
func (r *Repo) MoveAttribute(
	ctx context.Context, dataset, sourceCollection, attrName, targetCollection string, position int,
) error {
	req := host.Request{
		Action:   host.Update,
		Resource: host.DataContext(dataset).Collection(sourceCollection).AttributeLocation(attrName).String(),
		Values:   map[string]any{"collection": targetCollection, "position": position},
	}
	if err := r.call(ctx, req, nil); err != nil {
		return fmt.Errorf("move attribute: %w", err)
	}
	return nil
}

// CreateCollection creates a collection under parent ("" for a new top level)
// seeded with existing attributes, which the host moves into it.
func (r *Repo) CreateCollection(ctx context.Context, dataset, name, parent string, attrNames []string) error {
	if parent == "" {
		parent = rootParent
	}
	attrs := make([]map[string]string, len(attrNames))
	for i, n := range attrNames {
		attrs[i] = map[string]string{"name": n}
	}
	req := host.Request{
		Action:   host.Create,
		Resource: host.DataContext(dataset).CollectionNew().String(),
		Values: []map[string]any{{
			"name":       name,
			"title":      name,
			"parent":     parent,
			"attributes": attrs,
		}},
	}
	if err := r.call(ctx, req, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// UpdateCaseValue writes one cell and reads the stored value back.
func (r *Repo) UpdateCaseValue(ctx context.Context, dataset string, caseID int, attrName string, v any) (any, error) {
	res := host.DataContext(dataset).CaseByID(caseID).String()
	req := host.Request{
		Action:   host.Update,
		Resource: res,
		Values:   map[string]any{"values": map[string]any{attrName: v}},
	}
	if err := r.call(ctx, req, nil); err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}

	var env caseEnvelope
	if err := r.call(ctx, host.Request{Action: host.Get, Resource: res}, &env); err != nil {
		return nil, fmt.Errorf("read back case: %w", err)
	}
	stored, ok := env.Case.Values[attrName]
	if !ok {
		return v, nil
	}
	return stored, nil
}

// Sort asks the host to sort dataset by attrName.
func (r *Repo) Sort(ctx context.Context, dataset, attrName string, descending bool) error {
	req := host.Request{
		Action:   host.Update,
		Resource: host.DataContext(dataset).String(),
		Values:   map[string]any{"sort": map[string]any{"attr": attrName, "isDescending": descending}},
	}
	if err := r.call(ctx, req, nil); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	return nil
}
