package persist

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory Store for tests and demos.
type MemStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Save(_ context.Context, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = slices.Clone(snapshot)
	return nil
}

func (s *MemStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, ErrNoSnapshot
	}
	return slices.Clone(s.data), nil
}
