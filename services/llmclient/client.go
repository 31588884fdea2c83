package llmclient

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/services/credentials"
	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/services/queue"
)

// Default sampling parameters applied when the caller leaves them unset.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
	defaultTopP        = 1.0
)

// Dispatcher routes a request through rate limiting, queueing, and retry.
// *queue.Engine is the production implementation.
type Dispatcher interface {
	Do(ctx context.Context, req *queue.Request) (json.RawMessage, error)
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune one facade call. Zero values fall back to provider and client
// defaults.
type Options struct {
	// Provider overrides the active provider for this call.
	Provider string

	// Model overrides the provider's default model.
	Model string

	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// UseChatModel selects the chat-completion shape for GenerateText.
	// nil means true; set to false to use the legacy completion API.
	UseChatModel *bool
}

// Client is the public entry point: it validates configuration, assembles
// provider-normalized parameters, and delegates dispatch to the queue engine.
type Client struct {
	registry   *providers.Registry
	creds      *credentials.Service
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewClient wires a Client. Multiple independent clients with isolated state
// are supported; production runs one per process.
func NewClient(registry *providers.Registry, creds *credentials.Service, dispatcher Dispatcher, logger *zap.Logger) *Client {
	return &Client{
		registry:   registry,
		creds:      creds,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// resolve validates that the target provider is fully configured and picks
// the model for this call. Configuration errors surface before any network
// activity.
func (c *Client) resolve(opts Options) (providers.Descriptor, string, error) {
	providerID := opts.Provider
	if providerID == "" {
		providerID = c.creds.ActiveProvider()
	}

	desc, err := c.registry.Describe(providerID)
	if err != nil {
		return providers.Descriptor{}, "", err
	}

	if desc.RequiresKey() && c.creds.APIKey(providerID) == "" {
		return providers.Descriptor{}, "", &services.MissingConfigurationError{Provider: providerID, Field: "api key"}
	}
	if desc.RequiresEndpoint && c.creds.CustomEndpoint(providerID) == "" {
		return providers.Descriptor{}, "", &services.MissingConfigurationError{Provider: providerID, Field: "custom endpoint"}
	}

	model := opts.Model
	if model == "" {
		model = desc.DefaultModel
	}
	if model == "" {
		return providers.Descriptor{}, "", &services.MissingConfigurationError{Provider: providerID, Field: "model"}
	}

	return desc, model, nil
}

// baseParams assembles the wire parameters shared by chat and completion
// requests.
func (c *Client) baseParams(desc providers.Descriptor, model string, opts Options) map[string]any {
	params := map[string]any{
		"model":             model,
		"temperature":       defaultTemperature,
		"max_tokens":        defaultMaxTokens,
		"top_p":             defaultTopP,
		"frequency_penalty": 0.0,
		"presence_penalty":  0.0,
	}
	if opts.MaxTokens > 0 {
		params["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature != nil {
		params["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		params["top_p"] = *opts.TopP
	}
	if opts.FrequencyPenalty != nil {
		params["frequency_penalty"] = *opts.FrequencyPenalty
	}
	if opts.PresencePenalty != nil {
		params["presence_penalty"] = *opts.PresencePenalty
	}
	if desc.DeploymentRequired {
		// Azure deployments are provisioned under the model's name.
		params["deployment_id"] = model
	}
	return params
}

// estimateTokens approximates token usage as ceil(len/4) per text.
func estimateTokens(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += (len(t) + 3) / 4
	}
	return total
}

// CreateChatCompletion sends a chat-completion request and returns the
// provider's response body verbatim.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []Message, opts Options) (json.RawMessage, error) {
	desc, model, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := c.baseParams(desc, model, opts)
	params["messages"] = messages

	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Content
	}

	return c.dispatch(ctx, desc, providers.OpChat, params, estimateTokens(texts...))
}

// CreateCompletion sends a legacy text-completion request.
func (c *Client) CreateCompletion(ctx context.Context, prompt string, opts Options) (json.RawMessage, error) {
	desc, model, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := c.baseParams(desc, model, opts)
	params["prompt"] = prompt

	return c.dispatch(ctx, desc, providers.OpCompletion, params, estimateTokens(prompt))
}

// CreateEmbedding sends an embedding request for the given inputs.
func (c *Client) CreateEmbedding(ctx context.Context, input []string, opts Options) (json.RawMessage, error) {
	desc, model, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"model": model,
		"input": input,
	}
	if desc.DeploymentRequired {
		params["deployment_id"] = model
	}

	return c.dispatch(ctx, desc, providers.OpEmbeddings, params, estimateTokens(input...))
}

// GenerateText is the highest-level entry point: prompt in, text out. It uses
// the chat-completion shape unless opts.UseChatModel is explicitly false.
func (c *Client) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	useChat := opts.UseChatModel == nil || *opts.UseChatModel

	if useChat {
		body, err := c.CreateChatCompletion(ctx, []Message{{Role: "user", Content: prompt}}, opts)
		if err != nil {
			return "", err
		}
		return extractChatContent(body)
	}

	body, err := c.CreateCompletion(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return extractCompletionText(body)
}

// ListModels returns the model ids a provider advertises.
func (c *Client) ListModels(ctx context.Context, providerID string) ([]string, error) {
	if providerID == "" {
		providerID = c.creds.ActiveProvider()
	}
	desc, err := c.registry.Describe(providerID)
	if err != nil {
		return nil, err
	}
	if desc.RequiresKey() && c.creds.APIKey(providerID) == "" {
		return nil, &services.MissingConfigurationError{Provider: providerID, Field: "api key"}
	}
	if desc.RequiresEndpoint && c.creds.CustomEndpoint(providerID) == "" {
		return nil, &services.MissingConfigurationError{Provider: providerID, Field: "custom endpoint"}
	}

	body, err := c.dispatch(ctx, desc, providers.OpModels, nil, 0)
	if err != nil {
		return nil, err
	}
	return extractModelIDs(body)
}

func (c *Client) dispatch(ctx context.Context, desc providers.Descriptor, op providers.Operation, params map[string]any, estimatedTokens int) (json.RawMessage, error) {
	req := &queue.Request{
		ID:              uuid.New(),
		Provider:        desc.ID,
		Operation:       op,
		Params:          params,
		EstimatedTokens: estimatedTokens,
	}

	c.logger.Debug("dispatching request",
		zap.String("request_id", req.ID.String()),
		zap.String("provider", desc.ID),
		zap.String("operation", string(op)),
		zap.Int("estimated_tokens", estimatedTokens))

	return c.dispatcher.Do(ctx, req)
}
