package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registra/internal/enrollment/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	txcontext "registra/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists enrollments in PostgreSQL. The partial unique index
//
//	CREATE UNIQUE INDEX uq_enrollments_active
//	    ON enrollments (student_id, class_id, term) WHERE status = 'active'
//
// backs the at-most-one-active invariant, and TransitionFromActive guards the
// state machine with a conditional update so two racing transitions cannot
// both win.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed enrollment store.
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

const enrollmentColumns = `id, tenant_id, student_id, class_id, term, status, enrolled_at, status_changed_at, status_reason, final_grade, successor_id`

func (s *PostgresStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(enrollment.ID), uuid.UUID(enrollment.TenantID),
		uuid.UUID(enrollment.StudentID), uuid.UUID(enrollment.ClassID),
		enrollment.Term.String(), string(enrollment.Status), enrollment.EnrolledAt,
		enrollment.StatusChangedAt, nullable(enrollment.StatusReason),
		nullable(enrollment.FinalGrade), successorArg(enrollment.SuccessorID),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("active enrollment exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	enrollment, err := scanEnrollment(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(enrollmentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return enrollment, nil
}

// TransitionFromActive applies a terminal transition only if the stored row
// is still active. Zero rows affected means a concurrent writer got there
// first (or the row never existed).
func (s *PostgresStore) TransitionFromActive(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		UPDATE enrollments
		SET status = $2, status_changed_at = $3, status_reason = $4, final_grade = $5, successor_id = $6
		WHERE id = $1 AND status = 'active'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(enrollment.ID), string(enrollment.Status), enrollment.StatusChangedAt,
		nullable(enrollment.StatusReason), nullable(enrollment.FinalGrade),
		successorArg(enrollment.SuccessorID),
	)
	if err != nil {
		return fmt.Errorf("transition enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition enrollment: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)`, uuid.UUID(enrollment.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("transition enrollment: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) FindActiveByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1 AND status = 'active'
		ORDER BY enrolled_at DESC
	`
	return s.queryMany(ctx, query, uuid.UUID(studentID))
}

func (s *PostgresStore) FindActiveByClass(ctx context.Context, classID id.ClassID) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE class_id = $1 AND status = 'active'
		ORDER BY enrolled_at
	`
	return s.queryMany(ctx, query, uuid.UUID(classID))
}

func (s *PostgresStore) History(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1
		ORDER BY term DESC, enrolled_at DESC
	`
	return s.queryMany(ctx, query, uuid.UUID(studentID))
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Enrollment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*models.Enrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}
	return enrollments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var (
		e               models.Enrollment
		enrollmentID    uuid.UUID
		tenant          uuid.UUID
		student, class  uuid.UUID
		term, status    string
		statusChangedAt sql.NullTime
		reason, grade   sql.NullString
		successor       uuid.NullUUID
	)
	if err := row.Scan(&enrollmentID, &tenant, &student, &class, &term, &status,
		&e.EnrolledAt, &statusChangedAt, &reason, &grade, &successor); err != nil {
		return nil, err
	}
	e.ID = id.EnrollmentID(enrollmentID)
	e.TenantID = id.TenantID(tenant)
	e.StudentID = id.StudentID(student)
	e.ClassID = id.ClassID(class)
	e.Term = id.Term(term)
	e.Status = models.Status(status)
	if statusChangedAt.Valid {
		t := statusChangedAt.Time
		e.StatusChangedAt = &t
	}
	e.StatusReason = reason.String
	e.FinalGrade = grade.String
	if successor.Valid {
		succ := id.EnrollmentID(successor.UUID)
		e.SuccessorID = &succ
	}
	return &e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func successorArg(successor *id.EnrollmentID) uuid.NullUUID {
	if successor == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*successor), Valid: true}
}
