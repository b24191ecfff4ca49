package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "registra/pkg/domain"
	txcontext "registra/pkg/platform/tx"
)

// PostgresSequenceStore allocates numbers from a counter row per
// (tenant, kind, year). The upsert-returning statement serializes concurrent
// callers on the row lock, replacing any read-max-then-increment pattern.
type PostgresSequenceStore struct {
	db *sql.DB
}

// NewPostgresSequences constructs a PostgreSQL-backed sequence store.
func NewPostgresSequences(db *sql.DB) *PostgresSequenceStore {
	return &PostgresSequenceStore{db: db}
}

func (s *PostgresSequenceStore) Next(ctx context.Context, tenantID id.TenantID, kind string, year int) (int64, error) {
	query := `
		INSERT INTO sequences (tenant_id, kind, year, last_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, kind, year)
		DO UPDATE SET last_value = sequences.last_value + 1
		RETURNING last_value
	`
	var executor interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		executor = tx
	}

	var next int64
	if err := executor.QueryRowContext(ctx, query, uuid.UUID(tenantID), kind, year).Scan(&next); err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", kind, err)
	}
	return next, nil
}
