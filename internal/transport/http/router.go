// Package httptransport assembles the HTTP surface: middleware chain, feature
// handlers, and the operational endpoints. Handlers stay thin; everything
// below this layer speaks domain types.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registra/internal/platform/metrics"
	"registra/internal/platform/ratelimit"
	"registra/pkg/platform/httputil"
	"registra/pkg/platform/middleware/auth"
	"registra/pkg/platform/middleware/requestid"
	"registra/pkg/platform/middleware/requesttime"
)

// Registrar mounts a feature's routes. All feature handlers satisfy this.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router composes. Limiter and HTTPMetrics are
// optional; a nil value skips that middleware.
type Deps struct {
	Verifier    auth.TokenVerifier
	Logger      *slog.Logger
	Handlers    []Registrar
	Health      func(r *http.Request) error
	Limiter     *ratelimit.Middleware
	HTTPMetrics *metrics.HTTP
}

// NewRouter wires the middleware chain and mounts every feature handler under
// the authenticated API group. Health and metrics stay outside the auth gate.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(deps.Verifier, deps.Logger))
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Handler)
		}
		for _, h := range deps.Handlers {
			h.Register(r)
		}
	})

	return r
}

func handleHealth(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
