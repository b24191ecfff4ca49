package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "registra/pkg/domain"
	audit "registra/pkg/platform/audit"
	txcontext "registra/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker. Kafka is the source of truth for the audit trail; the outbox row is
// only the durable hand-off.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID        string          `json:"ID"`
	Timestamp string          `json:"Timestamp"`
	ActorID   string          `json:"ActorID,omitempty"`
	TenantID  string          `json:"TenantID,omitempty"`
	Action    string          `json:"Action"`
	Entity    string          `json:"Entity"`
	EntityID  string          `json:"EntityID,omitempty"`
	Success   bool            `json:"Success"`
	Reason    string          `json:"Reason,omitempty"`
	Before    json.RawMessage `json:"Before,omitempty"`
	After     json.RawMessage `json:"After,omitempty"`
	RequestID string          `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table. When called inside a
// ledger transaction the outbox row commits or rolls back with the mutation
// it describes.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		ActorID:   event.ActorID,
		Action:    event.Action,
		Entity:    string(event.Entity),
		EntityID:  event.EntityID,
		Success:   event.Success,
		Reason:    event.Reason,
		Before:    event.Before,
		After:     event.After,
		RequestID: event.RequestID,
	}
	if !event.TenantID.IsNil() {
		payload.TenantID = event.TenantID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, entity_kind, entity_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID, string(event.Entity), event.EntityID, event.Action, payloadBytes, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit outbox: %w", err)
	}
	return nil
}

// ListByEntity returns unpublished and published events for one entity from
// the outbox. This is a convenience for operators; the complete trail lives
// in Kafka.
func (s *Store) ListByEntity(ctx context.Context, kind audit.EntityKind, entityID string) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM audit_outbox
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(kind), entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit outbox: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		events = append(events, payloadToEvent(p))
	}
	return events, rows.Err()
}

// NextBatch returns up to limit unpublished outbox rows for the worker.
// Delivery is at-least-once: a crash between produce and MarkPublished
// republishes the batch, and consumers dedupe on the event ID.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]OutboxRow, error) {
	query := `
		SELECT id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim audit outbox batch: %w", err)
	}
	defer rows.Close()

	var batch []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox batch: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// MarkPublished stamps outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`
	_, err := s.execer(ctx).ExecContext(ctx, query, publishedAt, pq.Array(idsToStrings(ids)))
	if err != nil {
		return fmt.Errorf("mark audit outbox published: %w", err)
	}
	return nil
}

// OutboxRow is one claimed outbox entry awaiting publication.
type OutboxRow struct {
	ID      uuid.UUID
	Payload []byte
}

func idsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.String()
	}
	return out
}

func payloadToEvent(p outboxPayload) audit.Event {
	ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	event := audit.Event{
		Timestamp: ts,
		ActorID:   p.ActorID,
		Action:    p.Action,
		Entity:    audit.EntityKind(p.Entity),
		EntityID:  p.EntityID,
		Success:   p.Success,
		Reason:    p.Reason,
		Before:    p.Before,
		After:     p.After,
		RequestID: p.RequestID,
	}
	if p.TenantID != "" {
		if tenantID, err := id.ParseTenantID(p.TenantID); err == nil {
			event.TenantID = tenantID
		}
	}
	return event
}
