package store

import (
	"context"
	"fmt"
	"sync"

	id "registra/pkg/domain"
)

// InMemorySequenceStore is a mutex-guarded counter map for unit tests.
type InMemorySequenceStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{counters: make(map[string]int64)}
}

func (s *InMemorySequenceStore) Next(_ context.Context, tenantID id.TenantID, kind string, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s:%s:%d", tenantID, kind, year)
	s.counters[key]++
	return s.counters[key], nil
}
