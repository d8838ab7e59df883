package httpapi

import (
	"net/http"
	"strings"

	"github.com/transportops/field-service-api/internal/app/fieldauth"
)

// NewAuthMiddleware enforces Authorization: Bearer <token> on the routes it
// wraps. The token is an opaque bearer minted by the exchange endpoint; on
// success the cached claims land in request context.
func NewAuthMiddleware(auth *fieldauth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "missing bearer token", nil)
				return
			}

			claims, err := auth.ResolveBearer(r.Context(), raw)
			if err != nil {
				writeAppError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
