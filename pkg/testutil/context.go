package testutil

import (
	"net/http"
	"time"

	id "registra/pkg/domain"
	"registra/pkg/requestcontext"
)

// WithActor injects an actor context into the request, simulating what the
// auth middleware does for authenticated requests.
func WithActor(req *http.Request, actorID string, tenantID id.TenantID, role id.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorContext{
		ActorID:  actorID,
		TenantID: tenantID,
		Role:     role,
	})
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, simulating the request time
// middleware so handlers under test see a deterministic "now".
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
