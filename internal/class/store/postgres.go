package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registra/internal/class/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	txcontext "registra/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists classes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed class store.
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

const classColumns = `id, tenant_id, name, term, capacity, teacher_id, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, class *models.Class) error {
	query := `
		INSERT INTO classes (` + classColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(class.ID), uuid.UUID(class.TenantID), class.Name, class.Term.String(),
		class.Capacity, class.TeacherID, class.Active, class.CreatedAt, class.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("class name taken for term: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, classID id.ClassID) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	class, err := scanClass(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(classID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return class, nil
}

func (s *PostgresStore) Update(ctx context.Context, class *models.Class) error {
	query := `
		UPDATE classes
		SET capacity = $2, teacher_id = $3, active = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(class.ID), class.Capacity, class.TeacherID, class.Active, class.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByTerm(ctx context.Context, tenantID id.TenantID, term id.Term) ([]*models.Class, error) {
	query := `
		SELECT ` + classColumns + `
		FROM classes
		WHERE tenant_id = $1 AND term = $2
		ORDER BY name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), term.String())
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []*models.Class
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (*models.Class, error) {
	var (
		class           models.Class
		classID, tenant uuid.UUID
		term            string
	)
	if err := row.Scan(&classID, &tenant, &class.Name, &term, &class.Capacity,
		&class.TeacherID, &class.Active, &class.CreatedAt, &class.UpdatedAt); err != nil {
		return nil, err
	}
	class.ID = id.ClassID(classID)
	class.TenantID = id.TenantID(tenant)
	class.Term = id.Term(term)
	return &class, nil
}
