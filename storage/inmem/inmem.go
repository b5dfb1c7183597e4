// Package inmem provides an in-memory implementation of storage.Store for
// testing and local development. Records live in maps guarded by a RWMutex
// with no persistence across process restarts; production deployments plug
// in a durable backend behind the same interface.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/ohnodev/obelisk-core/storage"
)

// Store implements storage.Store in memory with no durability. All
// operations are thread-safe. Records are defensively copied on read and
// write so callers cannot mutate stored data.
type Store struct {
	mu           sync.RWMutex
	interactions map[string][]storage.Interaction
	activities   map[string][]storage.Activity
	weights      map[string][]byte
}

// New constructs an empty Store ready for use.
func New() *Store {
	return &Store{
		interactions: make(map[string][]storage.Interaction),
		activities:   make(map[string][]storage.Activity),
		weights:      make(map[string][]byte),
	}
}

// SaveInteraction appends one interaction for the user. A zero CreatedAt
// defaults to time.Now().
func (s *Store) SaveInteraction(_ context.Context, it storage.Interaction) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	it.Metadata = cloneBag(it.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[it.UserID] = append(s.interactions[it.UserID], it)
	return nil
}

// ListInteractions returns the user's interactions, newest first.
func (s *Store) ListInteractions(_ context.Context, userID string, limit int) ([]storage.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.interactions[userID]
	out := make([]storage.Interaction, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		it := stored[i]
		it.Metadata = cloneBag(it.Metadata)
		out = append(out, it)
	}
	return out, nil
}

// AppendActivity appends one activity entry for the user. A zero CreatedAt
// defaults to time.Now().
func (s *Store) AppendActivity(_ context.Context, a storage.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Data = cloneBag(a.Data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[a.UserID] = append(s.activities[a.UserID], a)
	return nil
}

// ListActivities returns the user's activity entries, newest first. Empty
// kind matches all kinds.
func (s *Store) ListActivities(_ context.Context, userID, kind string, limit int) ([]storage.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.activities[userID]
	out := make([]storage.Activity, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		a := stored[i]
		if kind != "" && a.Kind != kind {
			continue
		}
		a.Data = cloneBag(a.Data)
		out = append(out, a)
	}
	return out, nil
}

// PutWeights stores a copy of the blob under key.
func (s *Store) PutWeights(_ context.Context, key string, blob []byte) error {
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[key] = cp
	return nil
}

// GetWeights returns a copy of the blob stored under key, or
// storage.ErrNotFound.
func (s *Store) GetWeights(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.weights[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

// Reset clears all stored records. Useful for test isolation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = make(map[string][]storage.Interaction)
	s.activities = make(map[string][]storage.Activity)
	s.weights = make(map[string][]byte)
}

func cloneBag(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
