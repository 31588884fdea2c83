package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{429, true},
		{499, false},
		{500, true},
		{502, true},
		{599, true},
		{600, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.status))
		})
	}
}

func TestProviderHTTPErrorRetryable(t *testing.T) {
	t.Run("transport failure without status retries", func(t *testing.T) {
		err := &ProviderHTTPError{Provider: "openai", Endpoint: "/v1/chat/completions", Message: "connection refused"}
		assert.True(t, err.Retryable())
	})

	t.Run("rate limited response retries", func(t *testing.T) {
		err := &ProviderHTTPError{Provider: "openai", StatusCode: 429, Message: "rate limit"}
		assert.True(t, err.Retryable())
	})

	t.Run("auth failure does not retry", func(t *testing.T) {
		err := &ProviderHTTPError{Provider: "openai", StatusCode: 401, Message: "bad key"}
		assert.False(t, err.Retryable())
	})
}

func TestIsRetryable(t *testing.T) {
	t.Run("retryable provider error", func(t *testing.T) {
		err := &ProviderHTTPError{Provider: "azure", StatusCode: 503, Message: "overloaded"}
		assert.True(t, IsRetryable(err))
	})

	t.Run("wrapped retryable provider error", func(t *testing.T) {
		err := fmt.Errorf("dispatch: %w", &ProviderHTTPError{Provider: "azure", StatusCode: 500, Message: "boom"})
		assert.True(t, IsRetryable(err))
	})

	t.Run("terminal provider error", func(t *testing.T) {
		err := &ProviderHTTPError{Provider: "azure", StatusCode: 400, Message: "bad request"}
		assert.False(t, IsRetryable(err))
	})

	t.Run("unrelated error", func(t *testing.T) {
		assert.False(t, IsRetryable(errors.New("disk full")))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
	})
}
