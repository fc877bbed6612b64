package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/lexrelay/internal/chat"
	"github.com/ashureev/lexrelay/internal/config"
	"github.com/ashureev/lexrelay/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles liveness, health and client configuration endpoints.
type HealthHandler struct {
	repo store.Repository
	svc  *chat.Service
	cfg  *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, svc *chat.Service, cfg *config.Config) *HealthHandler {
	return &HealthHandler{repo: repo, svc: svc, cfg: cfg}
}

// Ping is the liveness probe.
func (h *HealthHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthCheckTimeout := 5 * time.Second
	if h.cfg != nil && h.cfg.Timeout.HealthCheck > 0 {
		healthCheckTimeout = h.cfg.Timeout.HealthCheck
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// GetConfig tells the frontend whether replies come from a real model.
func (h *HealthHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled": h.svc.GenerationEnabled(),
		"provider":   h.svc.ProviderName(),
	})
}

// RegisterRoutes registers the health routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", h.Ping)
	r.Get("/health", h.Health)
	r.Get("/config", h.GetConfig)
}
