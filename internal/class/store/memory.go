package store

import (
	"context"
	"sort"
	"sync"

	"registra/internal/class/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// InMemoryStore keeps classes in memory for unit tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	classes map[id.ClassID]*models.Class
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{classes: make(map[id.ClassID]*models.Class)}
}

func (s *InMemoryStore) Create(_ context.Context, class *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.classes {
		if existing.TenantID == class.TenantID && existing.Term == class.Term && existing.Name == class.Name {
			return sentinel.ErrConflict
		}
	}
	cp := *class
	s.classes[class.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, classID id.ClassID) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[classID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *class
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, class *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[class.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *class
	s.classes[class.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByTerm(_ context.Context, tenantID id.TenantID, term id.Term) ([]*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Class
	for _, class := range s.classes {
		if class.TenantID == tenantID && class.Term == term {
			cp := *class
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
