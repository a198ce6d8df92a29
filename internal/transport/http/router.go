// Package httptransport assembles the HTTP surface: middleware chain,
// public and claim-protected route groups, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/internal/platform/middleware"
	"registrar/internal/users/handler"
	"registrar/pkg/platform/httputil"
)

// NewRouter wires all endpoints. Lifecycle and read endpoints sit behind
// the claims middleware; self-registration and the operational endpoints
// do not.
func NewRouter(users *handler.Handler, jwtSigningKey string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(pub chi.Router) {
		users.RegisterPublic(pub)
	})

	r.Group(func(priv chi.Router) {
		priv.Use(middleware.RequireClaims(jwtSigningKey, logger))
		users.Register(priv)
	})

	return r
}
