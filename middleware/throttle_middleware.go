package middleware

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GlacierEQ/llmbridge/utils"
)

// Throttle limits inbound request throughput across all clients with a token
// bucket. The sidecar serves a single local user, so one shared bucket is
// enough; rps of zero or less disables the limit.
func Throttle(rps float64, burst int, logger *zap.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.Warn("inbound request throttled",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				_ = utils.WriteTooManyRequests(w, "Too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
