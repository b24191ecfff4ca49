// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, actor)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// ActorContext is the resolved caller identity every ledger operation runs
// under. The core never re-derives it from tokens; upstream middleware owns
// that.
type ActorContext struct {
	ActorID  string
	TenantID id.TenantID
	Role     id.Role
}

// IsZero reports whether no actor has been resolved.
func (a ActorContext) IsZero() bool {
	return a.ActorID == "" && a.TenantID.IsNil() && a.Role == ""
}

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActor       = actorKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Actor retrieves the resolved actor context. Returns the zero value if the
// auth middleware has not run.
func Actor(ctx context.Context) ActorContext {
	if actor, ok := ctx.Value(ContextKeyActor).(ActorContext); ok {
		return actor
	}
	return ActorContext{}
}

// WithActor injects an actor context.
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequireActor returns the actor context or an unauthorized error when none
// has been resolved.
func RequireActor(ctx context.Context) (ActorContext, error) {
	actor := Actor(ctx)
	if actor.IsZero() {
		return ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "actor context is required")
	}
	return actor, nil
}

// AuthorizeTenant rejects operations whose target tenant does not match the
// actor's tenant, unless the actor's role grants cross-tenant access.
func AuthorizeTenant(ctx context.Context, target id.TenantID) error {
	actor, err := RequireActor(ctx)
	if err != nil {
		return err
	}
	if target.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if actor.Role.CrossTenant() {
		return nil
	}
	if actor.TenantID != target {
		return dErrors.New(dErrors.CodeForbidden, "actor may not access this tenant")
	}
	return nil
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
