package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"

	dErrors "registra/pkg/domain-errors"
)

// TokenVerifier resolves a bearer token into an actor context. Satisfied by
// the identity verifier; swapped for a stub in handler tests.
type TokenVerifier interface {
	VerifyToken(tokenString string) (requestcontext.ActorContext, error)
}

// RequireActor rejects requests without a valid bearer token and injects the
// resolved actor context for downstream services.
func RequireActor(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token is required"))
				return
			}

			actor, err := verifier.VerifyToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "request rejected: token verification failed",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
