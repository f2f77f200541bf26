// Package api provides shared HTTP handler utilities and health checks.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response in the wire shape the chat client
// expects.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{"ok": false, "error": message})
}

// ErrorWithDetail writes a JSON error response with a detail field. Detail
// is only attached in development mode; callers pass "" otherwise.
func ErrorWithDetail(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]interface{}{"ok": false, "error": message}
	if detail != "" {
		body["detail"] = detail
	}
	JSON(w, status, body)
}

// Pinger verifies connectivity to one backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the health of the API and its databases.
type HealthHandler struct {
	sessions  Pinger
	knowledge Pinger
}

// NewHealthHandler creates a health handler over the session and knowledge
// stores.
func NewHealthHandler(sessions, knowledge Pinger) *HealthHandler {
	return &HealthHandler{sessions: sessions, knowledge: knowledge}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	statusCode := http.StatusOK
	overall := "healthy"

	if err := h.sessions.Ping(ctx); err != nil {
		slog.Error("Health check failed", "store", "sessions", "error", err)
		checks["sessions_db"] = "unreachable"
		overall = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["sessions_db"] = "ok"
	}

	if err := h.knowledge.Ping(ctx); err != nil {
		slog.Error("Health check failed", "store", "knowledge", "error", err)
		checks["knowledge_db"] = "unreachable"
		overall = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["knowledge_db"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{"status": overall, "checks": checks})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
