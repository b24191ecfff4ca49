package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"registra/internal/attendance/models"
	id "registra/pkg/domain"
)

// InMemoryStore is an in-memory presence store keyed by (student, day),
// mirroring the unique-index semantics of the PostgreSQL store for unit
// tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*models.Record
}

type recordKey struct {
	studentID id.StudentID
	day       time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]*models.Record)}
}

func (s *InMemoryStore) BulkUpsert(_ context.Context, records []*models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		key := recordKey{studentID: record.StudentID, day: record.Day}
		if existing, ok := s.records[key]; ok {
			// Overwrite in place, keeping the original identity and creation
			// time the way ON CONFLICT DO UPDATE does.
			copied := *record
			copied.ID = existing.ID
			copied.CreatedAt = existing.CreatedAt
			s.records[key] = &copied
			continue
		}
		copied := *record
		s.records[key] = &copied
	}
	return nil
}

// Snapshot and Restore back the MemoryRunner's rollback. Stored values are
// replaced on write, never mutated, so copying the map is enough.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[recordKey]*models.Record, len(s.records))
	for k, v := range s.records {
		cp[k] = v
	}
	return cp
}

func (s *InMemoryStore) Restore(snapshot any) {
	m, ok := snapshot.(map[recordKey]*models.Record)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = m
}

func (s *InMemoryStore) ListByClassDay(_ context.Context, classID id.ClassID, day time.Time) ([]*models.Record, error) {
	return s.filter(func(r *models.Record) bool {
		return r.ClassID == classID && r.Day.Equal(day)
	}), nil
}

func (s *InMemoryStore) ListByStudentRange(_ context.Context, studentID id.StudentID, from, to time.Time) ([]*models.Record, error) {
	return s.filter(func(r *models.Record) bool {
		return r.StudentID == studentID && inRange(r.Day, from, to)
	}), nil
}

func (s *InMemoryStore) ListByClassRange(_ context.Context, classID id.ClassID, from, to time.Time) ([]*models.Record, error) {
	return s.filter(func(r *models.Record) bool {
		return r.ClassID == classID && inRange(r.Day, from, to)
	}), nil
}

func (s *InMemoryStore) filter(keep func(*models.Record) bool) []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, record := range s.records {
		if keep(record) {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].StudentID.String() < out[j].StudentID.String()
	})
	return out
}

func inRange(day, from, to time.Time) bool {
	return !day.Before(from) && !day.After(to)
}
