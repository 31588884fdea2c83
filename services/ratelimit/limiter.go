package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/providers"
)

// windowSize is the trailing accounting period for request and token budgets.
const windowSize = time.Minute

type tokenEntry struct {
	at    time.Time
	count int
}

type window struct {
	requests []time.Time
	tokens   []tokenEntry
}

// prune drops entries older than the trailing window.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-windowSize)

	i := 0
	for i < len(w.requests) && !w.requests[i].After(cutoff) {
		i++
	}
	w.requests = w.requests[i:]

	j := 0
	for j < len(w.tokens) && !w.tokens[j].at.After(cutoff) {
		j++
	}
	w.tokens = w.tokens[j:]
}

func (w *window) tokenSum() int {
	sum := 0
	for _, e := range w.tokens {
		sum += e.count
	}
	return sum
}

// Limiter tracks sliding-window request and token usage per provider.
// WouldExceed is a pure check with no side effect; usage is recorded only
// after a request is actually dispatched. Because check and record are
// separate critical sections, concurrent callers can both pass the same
// check: the limiter tolerates soft over-limit bursts rather than enforcing
// a hard cap.
type Limiter struct {
	registry *providers.Registry
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter creates a Limiter over the given registry.
func NewLimiter(registry *providers.Registry, logger *zap.Logger) *Limiter {
	return &Limiter{
		registry: registry,
		logger:   logger,
		now:      time.Now,
		windows:  make(map[string]*window),
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// WouldExceed reports whether dispatching a request with the given token
// estimate would exceed the provider's rate limits. Providers without a
// rate-limit policy are never throttled.
func (l *Limiter) WouldExceed(provider string, estimatedTokens int) bool {
	desc, err := l.registry.Describe(provider)
	if err != nil || desc.RateLimits == nil {
		return false
	}
	limits := desc.RateLimits

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(provider)
	w.prune(l.now())

	if limits.RequestsPerMinute > 0 && len(w.requests) >= limits.RequestsPerMinute {
		l.logger.Debug("request budget exhausted",
			zap.String("provider", provider),
			zap.Int("requests_in_window", len(w.requests)))
		return true
	}
	if limits.TokensPerMinute > 0 && w.tokenSum()+estimatedTokens >= limits.TokensPerMinute {
		l.logger.Debug("token budget exhausted",
			zap.String("provider", provider),
			zap.Int("tokens_in_window", w.tokenSum()),
			zap.Int("estimated_tokens", estimatedTokens))
		return true
	}
	return false
}

// RecordUsage appends a request timestamp and, when tokenCount > 0, a token
// entry for the provider. Call only after the request has been dispatched.
func (l *Limiter) RecordUsage(provider string, tokenCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.window(provider)
	w.requests = append(w.requests, now)
	if tokenCount > 0 {
		w.tokens = append(w.tokens, tokenEntry{at: now, count: tokenCount})
	}
}

// AdjustLastUsage overwrites the most recent token entry with the
// provider-reported actual count, keeping the rolling window accurate
// without double counting. When the estimate was zero (no entry exists) an
// entry is appended instead.
func (l *Limiter) AdjustLastUsage(provider string, actualTokens int) {
	if actualTokens <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(provider)
	if len(w.tokens) == 0 {
		w.tokens = append(w.tokens, tokenEntry{at: l.now(), count: actualTokens})
		return
	}
	w.tokens[len(w.tokens)-1].count = actualTokens
}

func (l *Limiter) window(provider string) *window {
	w, ok := l.windows[provider]
	if !ok {
		w = &window{}
		l.windows[provider] = w
	}
	return w
}
