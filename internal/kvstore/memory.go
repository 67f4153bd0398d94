package kvstore

import (
	"context"
	"sync"
)

// MemoryStore keeps every scope in memory. The popup and configuration
// window contexts use it (their state is transient), and so do tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Scope]map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Scope]map[string]string)}
}

func (s *MemoryStore) Set(_ context.Context, scope Scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped, ok := s.values[scope]
	if !ok {
		scoped = make(map[string]string)
		s.values[scope] = scoped
	}
	scoped[key] = value
	return nil
}

func (s *MemoryStore) Get(_ context.Context, scope Scope, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}
