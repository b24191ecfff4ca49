package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"registra/internal/student/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// InMemoryStore keeps students in memory for unit tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	students map[id.StudentID]*models.Student
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{students: make(map[id.StudentID]*models.Student)}
}

func (s *InMemoryStore) Create(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.students {
		if existing.TenantID == student.TenantID && existing.AdmissionNo == student.AdmissionNo {
			return sentinel.ErrConflict
		}
	}
	cp := *student
	s.students[student.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, studentID id.StudentID) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[studentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *student
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *student
	s.students[student.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Student
	for _, student := range s.students {
		if student.TenantID == tenantID {
			cp := *student
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].DisplayName(), out[j].DisplayName()) < 0
	})
	return out, nil
}
