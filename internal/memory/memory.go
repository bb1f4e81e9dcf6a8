// Package memory gives the agent a key-value memory with two scopes:
// short-term (in-process, gone when the session ends) and long-term
// (sqlite-backed, shared across sessions).
package memory

import (
	"context"
	"sync"
	"time"
)

// Entry is one remembered fact.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the memory contract: opaque keys, string values, substring search.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
	Close() error
}

// ShortTerm is the in-process scope.
type ShortTerm struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewShortTerm() *ShortTerm {
	return &ShortTerm{entries: make(map[string]Entry)}
}

func (s *ShortTerm) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	entry, ok := s.entries[key]
	if !ok {
		entry = Entry{Key: key, CreatedAt: now}
	}
	entry.Value = value
	entry.UpdatedAt = now
	s.entries[key] = entry
	return nil
}

func (s *ShortTerm) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *ShortTerm) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *ShortTerm) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if containsFold(e.Key, query) || containsFold(e.Value, query) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *ShortTerm) Close() error { return nil }
