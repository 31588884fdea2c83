package queue

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/services/ratelimit"
)

// defaultPollInterval is how long the drain loop sleeps before rechecking the
// head-of-queue request against the rate window.
const defaultPollInterval = 5 * time.Second

// Request is one logical provider call flowing through the engine.
type Request struct {
	ID              uuid.UUID
	Provider        string
	Operation       providers.Operation
	Params          map[string]any // JSON request body; nil for GET operations
	EstimatedTokens int
}

// ExecFunc dispatches a request and returns the provider's raw response body.
type ExecFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// RetryPolicy governs exponential backoff between retryable failures.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the shipped defaults: up to 3 retries starting
// at 1s, doubling each attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
	}
}

// Delay returns the backoff before retry number attempt (starting at 0).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
}

type result struct {
	body json.RawMessage
	err  error
}

type pendingRequest struct {
	req *Request
	ctx context.Context
	ch  chan result // buffered, cap 1
}

// Engine serializes requests that would exceed a provider's rate window and
// retries transient failures with exponential backoff. Requests that fit the
// window execute immediately; the rest join a strict FIFO queue drained by a
// single background loop.
type Engine struct {
	limiter *ratelimit.Limiter
	exec    ExecFunc
	policy  RetryPolicy
	logger  *zap.Logger

	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	pending  []*pendingRequest
	draining bool
}

// NewEngine creates an Engine dispatching through exec.
func NewEngine(limiter *ratelimit.Limiter, exec ExecFunc, policy RetryPolicy, logger *zap.Logger) *Engine {
	return &Engine{
		limiter:      limiter,
		exec:         exec,
		policy:       policy,
		logger:       logger,
		pollInterval: defaultPollInterval,
		sleep:        sleepCtx,
	}
}

// SetPollInterval overrides the drain recheck interval. Intended for tests.
func (e *Engine) SetPollInterval(d time.Duration) {
	e.pollInterval = d
}

// SetSleep overrides the delay function used for queue polls and retry
// backoff. Intended for tests.
func (e *Engine) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes the request, queueing it first when the provider's rate window
// is full. It returns once the request has succeeded, terminally failed,
// exhausted its retries, or the context expired while waiting.
func (e *Engine) Do(ctx context.Context, req *Request) (json.RawMessage, error) {
	if !e.limiter.WouldExceed(req.Provider, req.EstimatedTokens) {
		return e.executeWithRetry(ctx, req)
	}

	p := &pendingRequest{req: req, ctx: ctx, ch: make(chan result, 1)}

	e.mu.Lock()
	e.pending = append(e.pending, p)
	depth := len(e.pending)
	if !e.draining {
		e.draining = true
		go e.drain()
	}
	e.mu.Unlock()

	e.logger.Info("request queued by rate limiter",
		zap.String("request_id", req.ID.String()),
		zap.String("provider", req.Provider),
		zap.String("operation", string(req.Operation)),
		zap.Int("queue_depth", depth))

	select {
	case res := <-p.ch:
		return res.body, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain processes the queue head-first. A head still blocked by the rate
// window is rechecked after a fixed interval; there is no reordering. Only
// one drain loop runs at a time.
func (e *Engine) drain() {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		head := e.pending[0]
		e.mu.Unlock()

		if head.ctx.Err() != nil {
			e.pop(head)
			head.ch <- result{err: head.ctx.Err()}
			continue
		}

		if e.limiter.WouldExceed(head.req.Provider, head.req.EstimatedTokens) {
			if err := e.sleep(context.Background(), e.pollInterval); err != nil {
				continue
			}
			continue
		}

		e.pop(head)
		body, err := e.executeWithRetry(head.ctx, head.req)
		head.ch <- result{body: body, err: err}
	}
}

func (e *Engine) pop(p *pendingRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > 0 && e.pending[0] == p {
		e.pending = e.pending[1:]
	}
}

// executeWithRetry runs the request, retrying transient failures (429, 5xx,
// transport errors) with exponential backoff until the policy is exhausted.
// Non-retryable failures propagate unchanged.
func (e *Engine) executeWithRetry(ctx context.Context, req *Request) (json.RawMessage, error) {
	var last error

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.policy.Delay(attempt - 1)
			e.logger.Warn("retrying provider request",
				zap.String("request_id", req.ID.String()),
				zap.String("provider", req.Provider),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(last))
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := e.exec(ctx, req)
		if err == nil {
			return body, nil
		}
		last = err

		if !services.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, &services.RetriesExhaustedError{
		Provider: req.Provider,
		Endpoint: string(req.Operation),
		Attempts: e.policy.MaxRetries,
		Last:     last,
	}
}
