// Package sequence numbers host requests per target so only the latest
// issued request for a target may update local state.
package sequence

import (
	"fmt"
	"sort"
	"sync"
)

// CaseKey identifies one cell.
func CaseKey(caseID int, attrName string) string { return fmt.Sprintf("case:%d:%s", caseID, attrName) }

// AttributeKey identifies one attribute by client id.
func AttributeKey(clientID string) string { return "attr:" + clientID }

// CollectionKey identifies one collection by name.
func CollectionKey(name string) string { return "collection:" + name }

// DatasetKey identifies dataset-wide requests (load, sort, moves).
func DatasetKey(name string) string { return "dataset:" + name }

// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	issued map[string]uint64
	done   map[string]uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{issued: make(map[string]uint64), done: make(map[string]uint64)}
}

// Next issues the next sequence number for key.
func (t *Tracker) Next(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued[key]++
	return t.issued[key]
}

// IsLatest reports whether n is the most recently issued number for key.
func (t *Tracker) IsLatest(key string, n uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issued[key] == n
}

// Done records that request n for key resolved. Only the latest number clears the pending mark.
func (t *Tracker) Done(key string, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > t.done[key] {
		t.done[key] = n
	}
}

// IsPending reports whether the latest request for key has not resolved yet.
func (t *Tracker) IsPending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issued[key] > t.done[key]
}

// Pending returns the keys whose latest request is in flight, sorted.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []string
	for k, n := range t.issued {
		if n > t.done[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Invalidate makes every outstanding number stale. Used when the dataset is discarded.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.issued {
		t.issued[k]++
		t.done[k] = t.issued[k]
	}
}
