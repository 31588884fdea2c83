package services

import (
	"errors"
	"fmt"
)

// UnknownProviderError indicates a provider id that is not present in the
// provider registry.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// MissingConfigurationError indicates a provider that exists but is not fully
// configured for use: missing API key, missing required endpoint, or no model
// resolvable for the request.
type MissingConfigurationError struct {
	Provider string
	Field    string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("provider %q is not configured: missing %s", e.Provider, e.Field)
}

// UnsupportedOperationError indicates an operation the provider's endpoint
// table has no entry for.
type UnsupportedOperationError struct {
	Provider  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("provider %q does not support operation %q", e.Provider, e.Operation)
}

// InvalidResponseShapeError indicates a 2xx response whose body is missing the
// field the caller expected (e.g. choices[0].message.content).
type InvalidResponseShapeError struct {
	Field string
}

func (e *InvalidResponseShapeError) Error() string {
	return fmt.Sprintf("provider response missing expected field %q", e.Field)
}

// ProviderHTTPError carries a non-2xx response from a provider. StatusCode 0
// means the request never produced an HTTP response (transport failure).
type ProviderHTTPError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ProviderHTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider %s request to %s failed: %s", e.Provider, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("provider %s returned %d for %s: %s", e.Provider, e.StatusCode, e.Endpoint, e.Message)
}

// Retryable reports whether the retry engine may re-attempt the request.
// Transport failures (no status) retry like 5xx responses.
func (e *ProviderHTTPError) Retryable() bool {
	return e.StatusCode == 0 || ShouldRetry(e.StatusCode)
}

// RetriesExhaustedError is terminal: the request failed with retryable errors
// maxRetries times in a row.
type RetriesExhaustedError struct {
	Provider string
	Endpoint string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("provider %s request to %s failed after %d retries: %v", e.Provider, e.Endpoint, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// ShouldRetry reports whether an HTTP status code is transient. 429 and all
// 5xx codes retry; auth failures (401/403) and malformed requests (400) never do.
func ShouldRetry(statusCode int) bool {
	return statusCode == 429 || (statusCode >= 500 && statusCode < 600)
}

// IsRetryable checks whether an error is a retryable provider HTTP error.
func IsRetryable(err error) bool {
	var httpErr *ProviderHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return false
}
