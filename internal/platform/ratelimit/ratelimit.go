// Package ratelimit caps request rates per actor. The middleware sits behind
// authentication, so the limit key is the acting staff member; unauthenticated
// probes fall back to the client address.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Result reports the outcome of one limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests per key inside a window. Satisfied by the in-memory
// sliding window and the Redis counter.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Middleware enforces a per-actor request limit. Store errors fail open: a
// degraded counter backend must not take the API down with it.
type Middleware struct {
	store    Store
	logger   *slog.Logger
	limit    int
	window   time.Duration
	disabled bool
}

// Option configures the Middleware.
type Option func(*Middleware)

// WithLimit overrides the allowed requests per window.
func WithLimit(limit int, window time.Duration) Option {
	return func(m *Middleware) {
		m.limit = limit
		m.window = window
	}
}

// WithDisabled turns the limiter off entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// New constructs the middleware. The default budget is 300 requests per
// minute per actor.
func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limit:  300,
		window: time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps next with the limit check.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := limitKey(r)

		result, err := m.store.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			if m.logger != nil {
				m.logger.Error("rate limit check failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result)

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func limitKey(r *http.Request) string {
	if actor := requestcontext.Actor(r.Context()); actor.ActorID != "" {
		return "actor:" + actor.ActorID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
