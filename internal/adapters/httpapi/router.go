package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: it wires routes and middleware and
// delegates to the Server handlers. QR-token routes authenticate inside the
// request body; only the read-back route needs the bearer middleware.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoint for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/field", func(r chi.Router) {
		r.Post("/token", s.handleExchangeToken)
		r.Post("/reports", s.handleSubmitReport)
		r.Post("/reports/{tripID}/finalize", s.handleFinalizeReport)
		r.Post("/sync-log", s.handleSyncLog)
		r.Post("/client-errors", s.handleClientError)

		r.Group(func(r chi.Router) {
			r.Use(NewAuthMiddleware(s.Auth))
			r.Get("/reports/{tripID}", s.handleGetReport)
		})
	})

	return r
}
