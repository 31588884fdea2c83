package providers

import (
	"strings"

	"github.com/GlacierEQ/llmbridge/services"
)

// Operation is a logical API operation exposed by the client facade. Every
// provider that supports an operation has a matching entry in its endpoint
// table; providers without an entry reject the operation up front.
type Operation string

const (
	OpChat       Operation = "chat"
	OpCompletion Operation = "completion"
	OpEmbeddings Operation = "embeddings"
	OpModels     Operation = "models"
)

// AuthScheme selects how the executor attaches credentials to a request.
type AuthScheme string

const (
	// AuthNone is for local inference servers that take no credentials.
	AuthNone AuthScheme = "none"

	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthScheme = "bearer"

	// AuthAPIKeyHeader sends a dedicated "api-key: <key>" header (Azure style).
	AuthAPIKeyHeader AuthScheme = "api-key"
)

// RateLimitPolicy is the provider's published per-minute budget. Providers
// with a nil policy are never throttled.
type RateLimitPolicy struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

// Descriptor is the static description of one backend. All provider-specific
// behavior the executor needs (base URL, endpoint paths, auth scheme,
// deployment injection) is data here, not branching at call sites.
type Descriptor struct {
	ID           string
	Name         string
	BaseURL      string // empty when the user must supply a custom endpoint
	Endpoints    map[Operation]string
	DefaultModel string
	Auth         AuthScheme

	// DeploymentRequired providers (Azure) need a deployment_id injected
	// into every request body.
	DeploymentRequired bool

	// RequiresEndpoint providers have no usable static BaseURL.
	RequiresEndpoint bool

	RateLimits *RateLimitPolicy
}

// RequiresKey reports whether the provider needs an API key to be configured.
func (d Descriptor) RequiresKey() bool {
	return d.Auth != AuthNone
}

// Configured reports whether the given credential material satisfies the
// descriptor: a non-empty key when one is required, and a custom endpoint
// when the provider has no static base URL.
func (d Descriptor) Configured(key, customEndpoint string) bool {
	if d.RequiresKey() && strings.TrimSpace(key) == "" {
		return false
	}
	if d.RequiresEndpoint && strings.TrimSpace(customEndpoint) == "" {
		return false
	}
	return true
}

// Registry is a read-only lookup table of provider descriptors.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry returns a registry holding the built-in provider set.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor)}
	for _, d := range builtins {
		r.descriptors[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Describe returns the descriptor for a provider id.
func (r *Registry) Describe(id string) (Descriptor, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, &services.UnknownProviderError{Provider: id}
	}
	return d, nil
}

// Has reports whether a provider id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.descriptors[id]
	return ok
}

// IsConfigured reports whether the provider exists and the supplied credential
// material satisfies it. Unknown providers are never configured.
func (r *Registry) IsConfigured(id, key, customEndpoint string) bool {
	d, ok := r.descriptors[id]
	if !ok {
		return false
	}
	return d.Configured(key, customEndpoint)
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

var openAIStyleEndpoints = map[Operation]string{
	OpChat:       "/chat/completions",
	OpCompletion: "/completions",
	OpEmbeddings: "/embeddings",
	OpModels:     "/models",
}

const azureAPIVersion = "2023-05-15"

var builtins = []Descriptor{
	{
		ID:           "openai",
		Name:         "OpenAI",
		BaseURL:      "https://api.openai.com/v1",
		Endpoints:    openAIStyleEndpoints,
		DefaultModel: "gpt-3.5-turbo",
		Auth:         AuthBearer,
		RateLimits: &RateLimitPolicy{
			RequestsPerMinute: 3500,
			TokensPerMinute:   90000,
		},
	},
	{
		ID:   "azure",
		Name: "Azure OpenAI",
		Endpoints: map[Operation]string{
			OpChat:       "/chat/completions?api-version=" + azureAPIVersion,
			OpCompletion: "/completions?api-version=" + azureAPIVersion,
			OpEmbeddings: "/embeddings?api-version=" + azureAPIVersion,
			OpModels:     "/models?api-version=" + azureAPIVersion,
		},
		Auth:               AuthAPIKeyHeader,
		DeploymentRequired: true,
		RequiresEndpoint:   true,
		RateLimits: &RateLimitPolicy{
			RequestsPerMinute: 240,
			TokensPerMinute:   240000,
		},
	},
	{
		ID:           "localai",
		Name:         "LocalAI",
		BaseURL:      "http://localhost:8080/v1",
		Endpoints:    openAIStyleEndpoints,
		DefaultModel: "ggml-gpt4all-j",
		Auth:         AuthNone,
	},
	{
		ID:           "ollama",
		Name:         "Ollama",
		BaseURL:      "http://localhost:11434/v1",
		Endpoints:    openAIStyleEndpoints,
		DefaultModel: "llama3",
		Auth:         AuthNone,
	},
}
