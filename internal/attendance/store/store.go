// Package store persists presence records.
package store

import (
	"context"
	"time"

	"registra/internal/attendance/models"
	id "registra/pkg/domain"
)

// Store is the presence ledger's persistence interface.
//
// Contract:
//   - BulkUpsert applies the whole batch keyed by (student_id, day):
//     existing rows are overwritten (status, arrival time, notes, recorder,
//     class, term), missing rows are inserted. Callers wanting batch
//     atomicity run it inside a transaction.
//   - Range reads treat from/to as inclusive normalized days.
type Store interface {
	BulkUpsert(ctx context.Context, records []*models.Record) error
	ListByClassDay(ctx context.Context, classID id.ClassID, day time.Time) ([]*models.Record, error)
	ListByStudentRange(ctx context.Context, studentID id.StudentID, from, to time.Time) ([]*models.Record, error)
	ListByClassRange(ctx context.Context, classID id.ClassID, from, to time.Time) ([]*models.Record, error)
}
