package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/providers"
)

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(providers.NewRegistry(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Contains(t, resp.Providers, "openai")
	assert.Contains(t, resp.Providers, "azure")
	assert.Contains(t, resp.Providers, "localai")
	assert.Contains(t, resp.Providers, "ollama")
}
