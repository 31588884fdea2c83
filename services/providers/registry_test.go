package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/llmbridge/services"
)

func TestRegistry_Describe(t *testing.T) {
	r := NewRegistry()

	t.Run("known provider", func(t *testing.T) {
		d, err := r.Describe("openai")
		require.NoError(t, err)
		assert.Equal(t, "openai", d.ID)
		assert.Equal(t, "https://api.openai.com/v1", d.BaseURL)
		assert.Equal(t, AuthBearer, d.Auth)
		assert.Equal(t, "gpt-3.5-turbo", d.DefaultModel)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := r.Describe("huggingface")
		var unknownErr *services.UnknownProviderError
		require.True(t, errors.As(err, &unknownErr))
		assert.Equal(t, "huggingface", unknownErr.Provider)
	})
}

func TestRegistry_EndpointCoverage(t *testing.T) {
	// Every facade operation must resolve for every registered provider.
	r := NewRegistry()
	ops := []Operation{OpChat, OpCompletion, OpEmbeddings, OpModels}

	for _, d := range r.List() {
		for _, op := range ops {
			_, ok := d.Endpoints[op]
			assert.True(t, ok, "provider %s missing endpoint for %s", d.ID, op)
		}
	}
}

func TestRegistry_IsConfigured(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name     string
		provider string
		key      string
		endpoint string
		want     bool
	}{
		{name: "openai without key", provider: "openai", want: false},
		{name: "openai with empty key", provider: "openai", key: "   ", want: false},
		{name: "openai with key", provider: "openai", key: "sk-test", want: true},
		{name: "azure key but no endpoint", provider: "azure", key: "az-key", want: false},
		{name: "azure endpoint but no key", provider: "azure", endpoint: "https://corp.openai.azure.com/openai/deployments/gpt4", want: false},
		{name: "azure fully configured", provider: "azure", key: "az-key", endpoint: "https://corp.openai.azure.com/openai/deployments/gpt4", want: true},
		{name: "localai needs nothing", provider: "localai", want: true},
		{name: "ollama needs nothing", provider: "ollama", want: true},
		{name: "unknown provider never configured", provider: "nope", key: "k", endpoint: "e", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsConfigured(tt.provider, tt.key, tt.endpoint))
		})
	}
}

func TestDescriptor_RateLimits(t *testing.T) {
	r := NewRegistry()

	openai, err := r.Describe("openai")
	require.NoError(t, err)
	require.NotNil(t, openai.RateLimits)
	assert.Equal(t, 3500, openai.RateLimits.RequestsPerMinute)

	local, err := r.Describe("localai")
	require.NoError(t, err)
	assert.Nil(t, local.RateLimits)
}
