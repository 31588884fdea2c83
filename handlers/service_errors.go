package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var (
		unknownErr     *services.UnknownProviderError
		configErr      *services.MissingConfigurationError
		unsupportedErr *services.UnsupportedOperationError
		httpErr        *services.ProviderHTTPError
		exhaustedErr   *services.RetriesExhaustedError
		shapeErr       *services.InvalidResponseShapeError
	)

	switch {
	case errors.As(err, &unknownErr):
		_ = utils.WriteNotFound(w, err.Error())

	case errors.As(err, &configErr):
		_ = utils.WriteBadRequest(w, err.Error(), nil)

	case errors.As(err, &unsupportedErr):
		_ = utils.WriteBadRequest(w, err.Error(), nil)

	case errors.As(err, &exhaustedErr):
		logger.Warn("provider retries exhausted",
			zap.String("provider", exhaustedErr.Provider),
			zap.Int("attempts", exhaustedErr.Attempts),
			zap.Error(err))
		_ = utils.WriteBadGateway(w, err.Error())

	case errors.As(err, &httpErr):
		logger.Warn("provider request failed",
			zap.String("provider", httpErr.Provider),
			zap.Int("status_code", httpErr.StatusCode),
			zap.Error(err))
		_ = utils.WriteBadGateway(w, err.Error())

	case errors.As(err, &shapeErr):
		logger.Warn("provider returned unexpected response shape", zap.Error(err))
		_ = utils.WriteBadGateway(w, err.Error())

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		_ = utils.WriteJSON(w, http.StatusGatewayTimeout, utils.ErrorResponse{
			Error:   "timeout",
			Message: "Request canceled or timed out while waiting for the provider",
		})

	default:
		logger.Error("unhandled service error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		if writeErr := utils.WriteBadRequest(w, "Validation failed", utils.GetValidationFields(err)); writeErr != nil {
			logger.Error("failed to write validation error response", zap.Error(writeErr))
		}
		return
	}

	if writeErr := utils.WriteBadRequest(w, err.Error(), nil); writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}
