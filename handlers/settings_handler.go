package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/credentials"
	"github.com/GlacierEQ/llmbridge/utils"
)

// UpdateSettingsRequest carries partial settings updates. Absent fields are
// left untouched; the active provider is switched last so key and endpoint
// updates in the same request are visible to its configuration check.
type UpdateSettingsRequest struct {
	ActiveProvider  string            `json:"active_provider,omitempty"`
	Keys            map[string]string `json:"keys,omitempty"`
	CustomEndpoints map[string]string `json:"custom_endpoints,omitempty"`
}

// SettingsHandler handles provider settings HTTP requests
type SettingsHandler struct {
	creds  *credentials.Service
	logger *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(creds *credentials.Service, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		creds:  creds,
		logger: logger,
	}
}

// HandleGetSettings handles GET /api/v1/settings
func (h *SettingsHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.creds.Snapshot())
}

// HandleUpdateSettings handles PUT /api/v1/settings
func (h *SettingsHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	for provider, key := range req.Keys {
		if err := h.creds.SetAPIKey(ctx, provider, key); err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	}
	for provider, endpoint := range req.CustomEndpoints {
		if err := h.creds.SetCustomEndpoint(ctx, provider, endpoint); err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	}
	if req.ActiveProvider != "" {
		if err := h.creds.SetActiveProvider(ctx, req.ActiveProvider); err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	}

	h.logger.Info("settings updated",
		zap.String("active_provider", h.creds.ActiveProvider()),
		zap.Int("keys_updated", len(req.Keys)),
		zap.Int("endpoints_updated", len(req.CustomEndpoints)))

	_ = utils.WriteOK(w, h.creds.Snapshot())
}

// SetActiveProviderRequest carries a provider switch
type SetActiveProviderRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// HandleSetActiveProvider handles PUT /api/v1/settings/provider
func (h *SettingsHandler) HandleSetActiveProvider(w http.ResponseWriter, r *http.Request) {
	var req SetActiveProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.creds.SetActiveProvider(r.Context(), req.Provider); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("active provider switched", zap.String("provider", req.Provider))
	_ = utils.WriteOK(w, h.creds.Snapshot())
}

// SetKeyRequest carries an API key update
type SetKeyRequest struct {
	Key string `json:"key"`
}

// HandleSetKey handles PUT /api/v1/settings/keys/{provider}
func (h *SettingsHandler) HandleSetKey(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req SetKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.creds.SetAPIKey(r.Context(), provider, req.Key); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("api key updated", zap.String("provider", provider))
	_ = utils.WriteOK(w, h.creds.Snapshot())
}

// SetEndpointRequest carries a custom endpoint update
type SetEndpointRequest struct {
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
}

// HandleSetEndpoint handles PUT /api/v1/settings/endpoints/{provider}
func (h *SettingsHandler) HandleSetEndpoint(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req SetEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.creds.SetCustomEndpoint(r.Context(), provider, req.Endpoint); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("custom endpoint updated", zap.String("provider", provider))
	_ = utils.WriteOK(w, h.creds.Snapshot())
}
