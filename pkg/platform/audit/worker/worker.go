// Package worker drains the audit outbox to the external sink. It runs beside
// the HTTP server and never sits on a ledger operation's critical path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	outbox "registra/pkg/platform/audit/store/postgres"
	"registra/pkg/platform/circuit"
)

// Sink is where claimed outbox payloads go. Satisfied by the Kafka sink.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Worker polls the outbox and forwards unpublished events to the sink.
// Publish failures leave rows unmarked so the next tick retries them. A
// breaker trips after repeated sink failures; while it is open the worker
// idles between probes instead of hammering a broker that is down.
type Worker struct {
	outbox   *outbox.Store
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
	breaker  *circuit.Breaker
	skipped  int
}

// probeEvery is how many ticks an open breaker sits out before the worker
// tries the sink again.
const probeEvery = 5

// Option configures the Worker.
type Option func(*Worker)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithBatchSize overrides how many rows one tick claims.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		w.batch = n
	}
}

// New constructs an outbox worker.
func New(store *outbox.Store, sink Sink, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		outbox:   store,
		sink:     sink,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
		breaker:  circuit.New("audit-sink", circuit.WithFailureThreshold(3)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.tick(ctx); err != nil && w.logger != nil {
				w.logger.Error("audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	if w.breaker.IsOpen() {
		w.skipped++
		if w.skipped < probeEvery {
			return nil
		}
		w.skipped = 0
	}

	rows, err := w.outbox.NextBatch(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if err := w.sink.Publish(ctx, entityKey(row.Payload), row.Payload); err != nil {
			// Stop at the first failure to preserve per-entity ordering.
			if _, change := w.breaker.RecordFailure(); change.Opened && w.logger != nil {
				w.logger.Warn("audit sink unavailable, backing off", "breaker", w.breaker.Name(), "error", err)
			}
			break
		}
		if _, change := w.breaker.RecordSuccess(); change.Closed && w.logger != nil {
			w.logger.Info("audit sink recovered", "breaker", w.breaker.Name())
		}
		published = append(published, row.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.outbox.MarkPublished(ctx, published, time.Now())
}

// entityKey extracts the Kafka partition key from the payload so events for
// one entity stay ordered.
func entityKey(payload []byte) string {
	var p struct {
		Entity   string `json:"Entity"`
		EntityID string `json:"EntityID"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.EntityID == "" {
		return p.Entity
	}
	return p.Entity + ":" + p.EntityID
}
