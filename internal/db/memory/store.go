// Package memory is an in-process db.Store for single-instance deployments and tests.
package memory

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/casetable/internal/db"
)

var _ db.Store = (*Store)(nil)

// Store keeps hashes in a map.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{hashes: make(map[string]map[string]string)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGetAll returns a copy of the hash at key.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// Del removes key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	return nil
}

// Scan returns keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.hashes {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
