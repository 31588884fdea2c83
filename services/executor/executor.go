package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/services/credentials"
	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/services/queue"
	"github.com/GlacierEQ/llmbridge/services/ratelimit"
)

// Executor builds provider-specific HTTP requests, dispatches them, and
// normalizes failures into typed errors. Successful bodies pass through
// verbatim; extracting text or embeddings is the facade's job.
type Executor struct {
	registry   *providers.Registry
	creds      *credentials.Service
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	logger     *zap.Logger
}

// NewExecutor creates an Executor. A nil httpClient gets a 60s-timeout default.
func NewExecutor(registry *providers.Registry, creds *credentials.Service, limiter *ratelimit.Limiter, httpClient *http.Client, logger *zap.Logger) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Executor{
		registry:   registry,
		creds:      creds,
		limiter:    limiter,
		httpClient: httpClient,
		logger:     logger,
	}
}

// providerUsage is the slice of the response body the executor reads for
// post-flight token accounting.
type providerUsage struct {
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Execute dispatches one request and returns the raw response body.
func (x *Executor) Execute(ctx context.Context, req *queue.Request) (json.RawMessage, error) {
	desc, err := x.registry.Describe(req.Provider)
	if err != nil {
		return nil, err
	}

	endpoint, ok := desc.Endpoints[req.Operation]
	if !ok {
		return nil, &services.UnsupportedOperationError{Provider: req.Provider, Operation: string(req.Operation)}
	}

	baseURL := x.creds.CustomEndpoint(req.Provider)
	if baseURL == "" {
		baseURL = desc.BaseURL
	}
	if baseURL == "" {
		return nil, &services.MissingConfigurationError{Provider: req.Provider, Field: "custom endpoint"}
	}
	url := strings.TrimRight(baseURL, "/") + endpoint

	httpReq, err := x.buildRequest(ctx, desc, req, url)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := x.httpClient.Do(httpReq)
	if err != nil {
		return nil, &services.ProviderHTTPError{
			Provider: req.Provider,
			Endpoint: endpoint,
			Message:  err.Error(),
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &services.ProviderHTTPError{
			Provider: req.Provider,
			Endpoint: endpoint,
			Message:  fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &services.ProviderHTTPError{
			Provider:   req.Provider,
			Endpoint:   endpoint,
			StatusCode: httpResp.StatusCode,
			Message:    parseErrorMessage(body),
		}
	}

	x.recordUsage(req, body)

	x.logger.Debug("provider request completed",
		zap.String("request_id", req.ID.String()),
		zap.String("provider", req.Provider),
		zap.String("operation", string(req.Operation)),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	return body, nil
}

func (x *Executor) buildRequest(ctx context.Context, desc providers.Descriptor, req *queue.Request, url string) (*http.Request, error) {
	method := http.MethodPost
	var body io.Reader
	if req.Operation == providers.OpModels {
		method = http.MethodGet
	} else {
		payload, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	switch desc.Auth {
	case providers.AuthBearer:
		httpReq.Header.Set("Authorization", "Bearer "+x.creds.APIKey(req.Provider))
	case providers.AuthAPIKeyHeader:
		httpReq.Header.Set("api-key", x.creds.APIKey(req.Provider))
	}

	return httpReq, nil
}

// recordUsage books the pre-flight estimate against the rate window, then
// overwrites it with the provider-reported actual count when the body
// carries one.
func (x *Executor) recordUsage(req *queue.Request, body []byte) {
	x.limiter.RecordUsage(req.Provider, req.EstimatedTokens)

	var usage providerUsage
	if err := json.Unmarshal(body, &usage); err != nil {
		return
	}
	if usage.Usage.TotalTokens > 0 {
		x.limiter.AdjustLastUsage(req.Provider, usage.Usage.TotalTokens)
	}
}

// parseErrorMessage extracts {"error":{"message":...}} from an error body,
// degrading to a generic message for non-JSON or differently shaped bodies.
func parseErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return "Unknown error"
	}
	return parsed.Error.Message
}
