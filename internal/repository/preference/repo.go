// Package preference persists per-dataset display preferences.
package preference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/casetable/internal/db"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
)

const (
	keySegment   = "pref:"
	fieldLayout  = "layout"
	fieldUpdated = "updated_at"
)

// Repo stores preferences as one hash per dataset.
type Repo struct {
	store  db.HashStore
	prefix string
	now    func() time.Time
	// fallback is returned for datasets without a stored layout.
	fallback layout.Layout
}

// New creates a preference repository. prefix namespaces every key.
func New(store db.HashStore, prefix string) *Repo {
	return &Repo{store: store, prefix: prefix + keySegment, now: time.Now}
}

// WithDefault sets the layout reported for datasets that have no stored choice.
func (r *Repo) WithDefault(l layout.Layout) *Repo {
	r.fallback = l
	return r
}

func (r *Repo) key(dataset string) string { return r.prefix + dataset }

// Layout returns the stored layout for dataset, the default when none is stored.
func (r *Repo) Layout(ctx context.Context, dataset string) (layout.Layout, error) {
	fields, err := r.store.HGetAll(ctx, r.key(dataset))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return r.fallback, nil
		}
		return layout.Unselected, fmt.Errorf("get layout preference: %w", err)
	}
	l, err := layout.Parse(fields[fieldLayout])
	if err != nil {
		// Unknown stored values are treated as no preference.
		return r.fallback, nil
	}
	return l, nil
}

// SetLayout stores l for dataset.
func (r *Repo) SetLayout(ctx context.Context, dataset string, l layout.Layout) error {
	fields := map[string]string{
		fieldLayout:  string(l),
		fieldUpdated: strconv.FormatInt(r.now().Unix(), 10),
	}
	if err := r.store.HSet(ctx, r.key(dataset), fields); err != nil {
		return fmt.Errorf("set layout preference: %w", err)
	}
	return nil
}

// Forget drops every preference of dataset.
func (r *Repo) Forget(ctx context.Context, dataset string) error {
	if err := r.store.Del(ctx, r.key(dataset)); err != nil {
		return fmt.Errorf("forget preferences: %w", err)
	}
	return nil
}

// Prune drops preferences of datasets not in keep and returns how many were removed.
func (r *Repo) Prune(ctx context.Context, keep []string) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan preferences: %w", err)
	}
	live := make(map[string]bool, len(keep))
	for _, k := range keep {
		live[k] = true
	}
	removed := 0
	for _, key := range keys {
		name := strings.TrimPrefix(key, r.prefix)
		if live[name] {
			continue
		}
		if err := r.store.Del(ctx, key); err != nil {
			return removed, fmt.Errorf("prune %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}
