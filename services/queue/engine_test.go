package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services"
	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/services/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T) (*ratelimit.Limiter, *fakeClock) {
	t.Helper()
	l := ratelimit.NewLimiter(providers.NewRegistry(), zap.NewNop())
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.SetClock(clock.Now)
	return l, clock
}

func chatRequest(provider string, tokens int) *Request {
	return &Request{
		ID:              uuid.New(),
		Provider:        provider,
		Operation:       providers.OpChat,
		Params:          map[string]any{"model": "gpt-3.5-turbo"},
		EstimatedTokens: tokens,
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
}

func TestEngine_ImmediateExecution(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		return json.RawMessage(`{"ok":true}`), nil
	}
	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())

	body, err := e.Do(context.Background(), chatRequest("openai", 10))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestEngine_RetriesTransientFailures(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	calls := 0
	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		calls++
		if calls <= 2 {
			return nil, &services.ProviderHTTPError{Provider: "openai", Endpoint: "/chat/completions", StatusCode: 503, Message: "unavailable"}
		}
		return json.RawMessage(`{"ok":true}`), nil
	}

	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())

	var delays []time.Duration
	e.SetSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	body, err := e.Do(context.Background(), chatRequest("openai", 10))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestEngine_NonRetryableFailsImmediately(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	tests := []struct {
		name   string
		status int
	}{
		{name: "bad request", status: 400},
		{name: "unauthorized", status: 401},
		{name: "forbidden", status: 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
				calls++
				return nil, &services.ProviderHTTPError{Provider: "openai", Endpoint: "/chat/completions", StatusCode: tt.status}
			}
			e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())

			_, err := e.Do(context.Background(), chatRequest("openai", 10))
			var httpErr *services.ProviderHTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestEngine_RetriesExhausted(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	calls := 0
	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		calls++
		return nil, &services.ProviderHTTPError{Provider: "openai", Endpoint: "/chat/completions", StatusCode: 429, Message: "rate limited"}
	}

	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())
	e.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })

	_, err := e.Do(context.Background(), chatRequest("openai", 10))

	var exhausted *services.RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, "openai", exhausted.Provider)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 4, calls, "initial attempt plus three retries")

	var httpErr *services.ProviderHTTPError
	assert.True(t, errors.As(exhausted.Last, &httpErr))
}

func TestEngine_QueuedRequestExecutesWhenWindowClears(t *testing.T) {
	limiter, clock := newTestLimiter(t)

	// Saturate azure's request window.
	for i := 0; i < 240; i++ {
		limiter.RecordUsage("azure", 0)
	}
	require.True(t, limiter.WouldExceed("azure", 10))

	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		return json.RawMessage(`{"queued":"done"}`), nil
	}
	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())

	// Each poll sleep advances simulated time past the window.
	e.SetSleep(func(ctx context.Context, d time.Duration) error {
		clock.Advance(61 * time.Second)
		return nil
	})

	body, err := e.Do(context.Background(), chatRequest("azure", 10))
	require.NoError(t, err)
	assert.JSONEq(t, `{"queued":"done"}`, string(body))
}

func TestEngine_QueuedFIFO(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	for i := 0; i < 240; i++ {
		limiter.RecordUsage("azure", 0)
	}

	var mu sync.Mutex
	var order []string
	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		mu.Lock()
		order = append(order, req.Params["tag"].(string))
		mu.Unlock()
		return json.RawMessage(`{}`), nil
	}

	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())
	e.SetSleep(func(ctx context.Context, d time.Duration) error {
		// Clear the whole window on the first poll so the loop drains
		// everything back to back.
		clock.Advance(61 * time.Second)
		return nil
	})

	tagged := func(tag string) *Request {
		r := chatRequest("azure", 0)
		r.Params["tag"] = tag
		return r
	}

	var wg sync.WaitGroup
	results := make([]error, 3)
	for i, tag := range []string{"first", "second", "third"} {
		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()
			_, err := e.Do(context.Background(), tagged(tag))
			results[i] = err
		}(i, tag)
		// Give each Do time to join the queue before the next arrives.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range results {
		require.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestEngine_QueuedRequestHonorsContext(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	for i := 0; i < 240; i++ {
		limiter.RecordUsage("azure", 0)
	}

	var calls int32
	exec := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}
	e := NewEngine(limiter, exec, DefaultRetryPolicy(), zap.NewNop())
	e.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Do(ctx, chatRequest("azure", 10))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Give the drain loop a beat to observe the dead context and discard it.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "blocked request must not execute")
}
