package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is the slice of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and store liveness.
type HealthHandler struct {
	store   Pinger
	version string
}

// NewHealthHandler creates a health handler backed by the given store.
func NewHealthHandler(store Pinger, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// RegisterHealth mounts the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]string{
		"status":  status,
		"service": "signlink",
		"version": h.version,
	})
}
