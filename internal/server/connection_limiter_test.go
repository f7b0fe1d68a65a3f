package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(2)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.False(t, limiter.Acquire())

	limiter.Release()
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(2), limiter.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	assert.True(t, limiter.Acquire("1.1.1.1"))
	assert.True(t, limiter.Acquire("1.1.1.1"))
	assert.False(t, limiter.Acquire("1.1.1.1"))

	// Other IPs are unaffected
	assert.True(t, limiter.Acquire("2.2.2.2"))

	limiter.Release("1.1.1.1")
	assert.True(t, limiter.Acquire("1.1.1.1"))
}

func TestIPConnectionLimiter_ReleaseUnknownIP(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)
	limiter.Release("9.9.9.9")
	assert.Equal(t, 0, limiter.Count("9.9.9.9"))
}

func TestConnectionRateLimiter(t *testing.T) {
	limiter := NewConnectionRateLimiter(1, 2)

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"), "burst exhausted")

	// Separate bucket per IP
	assert.True(t, limiter.Allow("2.2.2.2"))
}

func TestConnectionLimits_Acquire(t *testing.T) {
	limits := NewConnectionLimits(10, 5, 100, 100)

	ok, reason := limits.Acquire("1.1.1.1")
	require.True(t, ok)
	assert.Empty(t, reason)

	limits.Release("1.1.1.1")
}

func TestConnectionLimits_GlobalExceeded(t *testing.T) {
	limits := NewConnectionLimits(1, 5, 100, 100)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("2.2.2.2")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)
}

func TestConnectionLimits_PerIPExceededRollsBackGlobal(t *testing.T) {
	limits := NewConnectionLimits(10, 1, 100, 100)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("1.1.1.1")
	require.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// The global slot taken during the failed acquire was returned
	assert.Equal(t, int64(1), limits.global.Current())
}

func TestConnectionLimits_RateExceeded(t *testing.T) {
	limits := NewConnectionLimits(100, 100, 1, 1)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}

func TestConnectionLimits_ManyIPs(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 100, 100)

	for i := 0; i < 50; i++ {
		ok, reason := limits.Acquire(fmt.Sprintf("10.0.0.%d", i))
		require.True(t, ok, "ip %d rejected: %s", i, reason)
	}
	assert.Equal(t, int64(50), limits.global.Current())
}
