package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Providers []string `json:"providers"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	registry *providers.Registry
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(registry *providers.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0)
	for _, desc := range h.registry.List() {
		ids = append(ids, desc.ID)
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Providers: ids,
	}

	_ = utils.WriteOK(w, response)
}
