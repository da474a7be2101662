package cache

import (
	"context"
	"sync"

	"github.com/zatekoja/furniturefinder/internal/domain/providers"
)

// MemoryKeyValueStore is a process-local KeyValueStore used when Redis is
// not configured
type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyValueStore creates an empty in-memory store
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: make(map[string]string)}
}

// Get retrieves the value under key
func (s *MemoryKeyValueStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", providers.ErrKeyNotFound
	}
	return v, nil
}

// Set stores value under key
func (s *MemoryKeyValueStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove deletes key
func (s *MemoryKeyValueStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
