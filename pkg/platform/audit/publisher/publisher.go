// Package publisher emits audit events to a Store with fire-and-observe
// semantics. Ledger mutations never fail because an audit write failed; the
// failure is logged and surfaced through metrics on the sink side instead.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "registra/pkg/platform/audit"
)

// Publisher captures structured audit events. In sync mode Emit appends
// directly; with an async buffer Emit enqueues and a drain goroutine appends
// in the background.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox chan audit.Event
	done  chan struct{}
	once  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for reporting dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to async mode with the given queue
// size. A full queue drops the event rather than blocking the ledger
// operation.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event. The returned error is advisory: callers log it
// but must not roll back the primary mutation on account of it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.Warn("audit queue full, event dropped",
				"action", event.Action,
				"entity", event.Entity,
				"entity_id", event.EntityID,
			)
		}
		return nil
	}
}

// List returns the audit trail for one entity.
func (p *Publisher) List(ctx context.Context, kind audit.EntityKind, entityID string) ([]audit.Event, error) {
	return p.store.ListByEntity(ctx, kind, entityID)
}

// Close drains any queued events and stops the background goroutine.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"entity", event.Entity,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
	}
}
