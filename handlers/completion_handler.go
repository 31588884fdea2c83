package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/llmclient"
	"github.com/GlacierEQ/llmbridge/utils"
)

// TextService defines the client operations the completion endpoints need.
type TextService interface {
	GenerateText(ctx context.Context, prompt string, opts llmclient.Options) (string, error)
	CreateChatCompletion(ctx context.Context, messages []llmclient.Message, opts llmclient.Options) (json.RawMessage, error)
	CreateCompletion(ctx context.Context, prompt string, opts llmclient.Options) (json.RawMessage, error)
	CreateEmbedding(ctx context.Context, input []string, opts llmclient.Options) (json.RawMessage, error)
	ListModels(ctx context.Context, provider string) ([]string, error)
}

// GenerateRequest is the simplified prompt-in text-out request body
type GenerateRequest struct {
	Prompt       string   `json:"prompt" validate:"required"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP         *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	UseChatModel *bool    `json:"use_chat_model,omitempty"`
}

// GenerateResponse carries the generated text
type GenerateResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
}

// ChatCompletionRequest is the OpenAI-compatible chat completion request body
type ChatCompletionRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Provider    string        `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64      `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ChatMessage is a single chat turn
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// CompletionRequest is the legacy text completion request body
type CompletionRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// EmbeddingRequest is the embedding request body
type EmbeddingRequest struct {
	Input    []string `json:"input" validate:"required,min=1"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

// CompletionHandler handles text generation HTTP requests
type CompletionHandler struct {
	client TextService
	logger *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler
func NewCompletionHandler(client TextService, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		client: client,
		logger: logger,
	}
}

// HandleGenerate handles POST /api/v1/generate
func (h *CompletionHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	opts := llmclient.Options{
		Provider:     req.Provider,
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
		UseChatModel: req.UseChatModel,
	}

	text, err := h.client.GenerateText(ctx, req.Prompt, opts)
	if err != nil {
		h.logger.Warn("text generation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, GenerateResponse{Text: text, Provider: req.Provider})
}

// HandleChatCompletion handles POST /api/v1/chat/completions
func (h *CompletionHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	messages := make([]llmclient.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = llmclient.Message{Role: m.Role, Content: m.Content}
	}

	opts := llmclient.Options{
		Provider:    req.Provider,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	body, err := h.client.CreateChatCompletion(ctx, messages, opts)
	if err != nil {
		h.logger.Warn("chat completion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeRaw(w, body)
}

// HandleCompletion handles POST /api/v1/completions
func (h *CompletionHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	opts := llmclient.Options{
		Provider:    req.Provider,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	body, err := h.client.CreateCompletion(ctx, req.Prompt, opts)
	if err != nil {
		h.logger.Warn("completion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeRaw(w, body)
}

// HandleEmbedding handles POST /api/v1/embeddings
func (h *CompletionHandler) HandleEmbedding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	var req EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	opts := llmclient.Options{
		Provider: req.Provider,
		Model:    req.Model,
	}

	body, err := h.client.CreateEmbedding(ctx, req.Input, opts)
	if err != nil {
		h.logger.Warn("embedding failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeRaw(w, body)
}

// writeRaw forwards a provider response body as-is
func (h *CompletionHandler) writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
