package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"registra/internal/attendance/models"
	id "registra/pkg/domain"
	txcontext "registra/pkg/platform/tx"
)

// PostgresStore persists presence records in PostgreSQL. The unique index
//
//	CREATE UNIQUE INDEX uq_attendance_student_day
//	    ON attendance_records (student_id, day)
//
// backs the one-outcome-per-(student, day) invariant; BulkUpsert rides it
// with ON CONFLICT DO UPDATE so re-marking a day overwrites in place.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed presence store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, tenant_id, student_id, class_id, term, day, status, arrival_time, notes, recorded_by, created_at, updated_at`

func (s *PostgresStore) BulkUpsert(ctx context.Context, records []*models.Record) error {
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (student_id, day) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			term = EXCLUDED.term,
			status = EXCLUDED.status,
			arrival_time = EXCLUDED.arrival_time,
			notes = EXCLUDED.notes,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = EXCLUDED.updated_at
	`
	execer := s.execer(ctx)
	for _, record := range records {
		_, err := execer.ExecContext(ctx, query,
			uuid.UUID(record.ID), uuid.UUID(record.TenantID),
			uuid.UUID(record.StudentID), uuid.UUID(record.ClassID),
			record.Term.String(), record.Day, string(record.Status),
			record.ArrivalTime, record.Notes, record.RecordedBy,
			record.CreatedAt, record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert attendance record: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByClassDay(ctx context.Context, classID id.ClassID, day time.Time) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE class_id = $1 AND day = $2 ORDER BY student_id`
	return s.queryMany(ctx, query, uuid.UUID(classID), day)
}

func (s *PostgresStore) ListByStudentRange(ctx context.Context, studentID id.StudentID, from, to time.Time) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE student_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day`
	return s.queryMany(ctx, query, uuid.UUID(studentID), from, to)
}

func (s *PostgresStore) ListByClassRange(ctx context.Context, classID id.ClassID, from, to time.Time) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE class_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day, student_id`
	return s.queryMany(ctx, query, uuid.UUID(classID), from, to)
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		recordID    uuid.UUID
		tenantID    uuid.UUID
		studentID   uuid.UUID
		classID     uuid.UUID
		term        string
		status      string
		arrivalTime sql.NullTime
		notes       sql.NullString
		recordedBy  sql.NullString
		record      models.Record
	)
	err := row.Scan(&recordID, &tenantID, &studentID, &classID, &term,
		&record.Day, &status, &arrivalTime, &notes, &recordedBy,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.ID = id.AttendanceID(recordID)
	record.TenantID = id.TenantID(tenantID)
	record.StudentID = id.StudentID(studentID)
	record.ClassID = id.ClassID(classID)
	record.Term = id.Term(term)
	record.Status = models.Status(status)
	if arrivalTime.Valid {
		record.ArrivalTime = &arrivalTime.Time
	}
	record.Notes = notes.String
	record.RecordedBy = recordedBy.String
	return &record, nil
}
