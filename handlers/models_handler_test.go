package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
)

func getModels(t *testing.T, handler *ModelsHandler, provider string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/"+provider, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", provider)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	handler.HandleListModels(w, req)
	return w
}

func TestHandleListModels(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns model ids", func(t *testing.T) {
		svc := &fakeTextService{models: []string{"gpt-3.5-turbo", "gpt-4"}}
		handler := NewModelsHandler(svc, logger)

		w := getModels(t, handler, "openai")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "openai", svc.lastProvider)

		var resp ModelListResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "openai", resp.Provider)
		assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4"}, resp.Models)
	})

	t.Run("unknown provider maps to 404", func(t *testing.T) {
		svc := &fakeTextService{err: &services.UnknownProviderError{Provider: "anthropic"}}
		handler := NewModelsHandler(svc, logger)

		w := getModels(t, handler, "anthropic")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
