package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/utils"
)

// ModelListResponse carries the model ids a provider advertises
type ModelListResponse struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

// ModelsHandler handles model discovery HTTP requests
type ModelsHandler struct {
	client TextService
	logger *zap.Logger
}

// NewModelsHandler creates a new ModelsHandler
func NewModelsHandler(client TextService, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		client: client,
		logger: logger,
	}
}

// HandleListModels handles GET /api/v1/models/{provider}
func (h *ModelsHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	models, err := h.client.ListModels(r.Context(), provider)
	if err != nil {
		h.logger.Warn("model listing failed",
			zap.String("provider", provider),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, ModelListResponse{Provider: provider, Models: models})
}
