package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GlacierEQ/llmbridge/services/providers"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(t *testing.T) (*Limiter, *fakeClock) {
	t.Helper()
	l := NewLimiter(providers.NewRegistry(), zap.NewNop())
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.SetClock(clock.Now)
	return l, clock
}

func TestLimiter_UnlimitedProviderNeverThrottled(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < 10000; i++ {
		l.RecordUsage("localai", 1000)
	}
	assert.False(t, l.WouldExceed("localai", 1000000))
}

func TestLimiter_UnknownProviderNotThrottled(t *testing.T) {
	l, _ := newTestLimiter(t)
	assert.False(t, l.WouldExceed("nope", 10))
}

func TestLimiter_RequestWindow(t *testing.T) {
	// azure: 240 requests per minute
	l, clock := newTestLimiter(t)

	for i := 0; i < 240; i++ {
		l.RecordUsage("azure", 0)
	}
	assert.True(t, l.WouldExceed("azure", 0))

	// Once the window slides past the recorded usage, the budget frees up.
	clock.Advance(61 * time.Second)
	assert.False(t, l.WouldExceed("azure", 0))
}

func TestLimiter_CheckHasNoSideEffect(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < 1000; i++ {
		assert.False(t, l.WouldExceed("openai", 10))
	}
}

func TestLimiter_TokenWindow(t *testing.T) {
	// azure: 240000 tokens per minute
	l, clock := newTestLimiter(t)

	l.RecordUsage("azure", 200000)
	assert.False(t, l.WouldExceed("azure", 30000))
	assert.True(t, l.WouldExceed("azure", 40000))

	clock.Advance(61 * time.Second)
	assert.False(t, l.WouldExceed("azure", 40000))
}

func TestLimiter_PartialWindowSlide(t *testing.T) {
	l, clock := newTestLimiter(t)

	l.RecordUsage("azure", 150000)
	clock.Advance(30 * time.Second)
	l.RecordUsage("azure", 80000)

	// Both entries still inside the window.
	assert.True(t, l.WouldExceed("azure", 20000))

	// First entry ages out; only 80000 remains.
	clock.Advance(31 * time.Second)
	assert.False(t, l.WouldExceed("azure", 20000))
}

func TestLimiter_AdjustLastUsage(t *testing.T) {
	l, _ := newTestLimiter(t)

	t.Run("overwrites most recent entry", func(t *testing.T) {
		l.RecordUsage("azure", 100000)
		l.AdjustLastUsage("azure", 239999)
		assert.True(t, l.WouldExceed("azure", 1))
		l.AdjustLastUsage("azure", 1)
		assert.False(t, l.WouldExceed("azure", 100))
	})

	t.Run("appends when no entry exists", func(t *testing.T) {
		l, _ := newTestLimiter(t)
		l.RecordUsage("azure", 0) // zero estimate records no token entry
		l.AdjustLastUsage("azure", 239999)
		assert.True(t, l.WouldExceed("azure", 1))
	})

	t.Run("ignores non-positive counts", func(t *testing.T) {
		l, _ := newTestLimiter(t)
		l.RecordUsage("azure", 500)
		l.AdjustLastUsage("azure", 0)
		l.AdjustLastUsage("azure", -3)
		assert.False(t, l.WouldExceed("azure", 100))
	})
}

func TestLimiter_ZeroTokenUsageRecordsNoTokenEntry(t *testing.T) {
	l, _ := newTestLimiter(t)

	l.RecordUsage("azure", 0)
	// Token budget untouched; only the request count moved.
	assert.False(t, l.WouldExceed("azure", 239998))
}
