package store

import (
	"context"
	"sort"
	"sync"

	"registra/internal/enrollment/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// InMemoryStore keeps enrollments in memory with the same invariant
// enforcement the Postgres store gets from its indexes, so unit tests
// exercise real conflict paths.
type InMemoryStore struct {
	mu          sync.RWMutex
	enrollments map[id.EnrollmentID]*models.Enrollment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{enrollments: make(map[id.EnrollmentID]*models.Enrollment)}
}

func (s *InMemoryStore) Create(_ context.Context, enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enrollment.IsActive() {
		for _, existing := range s.enrollments {
			if existing.IsActive() &&
				existing.StudentID == enrollment.StudentID &&
				existing.ClassID == enrollment.ClassID &&
				existing.Term == enrollment.Term {
				return sentinel.ErrConflict
			}
		}
	}
	cp := *enrollment
	s.enrollments[enrollment.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[enrollmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *enrollment
	return &cp, nil
}

func (s *InMemoryStore) TransitionFromActive(_ context.Context, enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.enrollments[enrollment.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !existing.IsActive() {
		return sentinel.ErrInvalidState
	}
	cp := *enrollment
	s.enrollments[enrollment.ID] = &cp
	return nil
}

// Snapshot and Restore back the MemoryRunner's rollback. Stored values are
// replaced on write, never mutated, so copying the map is enough.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[id.EnrollmentID]*models.Enrollment, len(s.enrollments))
	for k, v := range s.enrollments {
		cp[k] = v
	}
	return cp
}

func (s *InMemoryStore) Restore(snapshot any) {
	m, ok := snapshot.(map[id.EnrollmentID]*models.Enrollment)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments = m
}

func (s *InMemoryStore) FindActiveByStudent(_ context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	return s.filter(func(e *models.Enrollment) bool {
		return e.IsActive() && e.StudentID == studentID
	}, byEnrolledAtDesc), nil
}

func (s *InMemoryStore) FindActiveByClass(_ context.Context, classID id.ClassID) ([]*models.Enrollment, error) {
	return s.filter(func(e *models.Enrollment) bool {
		return e.IsActive() && e.ClassID == classID
	}, byEnrolledAtAsc), nil
}

func (s *InMemoryStore) History(_ context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	return s.filter(func(e *models.Enrollment) bool {
		return e.StudentID == studentID
	}, byTermThenEnrolledAtDesc), nil
}

func (s *InMemoryStore) filter(keep func(*models.Enrollment) bool, less func(a, b *models.Enrollment) bool) []*models.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Enrollment
	for _, e := range s.enrollments {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byEnrolledAtDesc(a, b *models.Enrollment) bool {
	return a.EnrolledAt.After(b.EnrolledAt)
}

func byEnrolledAtAsc(a, b *models.Enrollment) bool {
	return a.EnrolledAt.Before(b.EnrolledAt)
}

func byTermThenEnrolledAtDesc(a, b *models.Enrollment) bool {
	if a.Term != b.Term {
		return a.Term > b.Term
	}
	return a.EnrolledAt.After(b.EnrolledAt)
}
