package handlers

import (
	"context"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dashboard serves a role-gated landing area. The role check itself happens
// in auth.RequireRole; this only echoes who is signed in.
func (h *AuthHandler) Dashboard(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flows, ok := h.flows(w, r)
		if !ok {
			return
		}
		session, err := flows.CurrentSession(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if session == nil {
			pkghttp.WriteUnauthorized(w, msgNoSession)
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, DashboardResponse{Area: area, User: session.User})
	}
}

// Health handles GET /health. db may be nil for the in-memory backend.
func Health(db HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "storage": "memory"})
			return
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			logger.Error("health check failed", slog.Any("error", err))
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
