package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectra/bubblescope/internal/monitoring"
)

func TestRateLimiterFallbackMode(t *testing.T) {
	redisClient := &RedisClient{enabled: false}
	config := Config{
		IPLimitPerMin:      3,
		AnalyzeLimitPerMin: 2,
		BurstMultiplier:    1,
	}
	metrics := monitoring.NewMetrics()

	limiter := NewRateLimiter(redisClient, config, metrics)

	ctx := context.Background()

	// Burst floor is 5, so the first 5 requests pass and the 6th is blocked.
	allowedCount := 0
	var blocked *Result
	for i := 0; i < 6; i++ {
		result, err := limiter.AllowIP(ctx, "203.0.113.9")
		require.NoError(t, err)
		if result.Allowed {
			allowedCount++
		} else {
			blocked = result
		}
		assert.Equal(t, 3, result.Limit)
	}

	assert.Equal(t, 5, allowedCount)
	require.NotNil(t, blocked)
	assert.Greater(t, blocked.RetryAfter, time.Duration(0))
}

func TestRateLimiterIndependentKeys(t *testing.T) {
	redisClient := &RedisClient{enabled: false}
	config := DefaultConfig()
	metrics := monitoring.NewMetrics()

	limiter := NewRateLimiter(redisClient, config, metrics)

	ctx := context.Background()

	first, err := limiter.AllowIP(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := limiter.AllowIP(ctx, "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	limiter.fallbackMutex.RLock()
	assert.Len(t, limiter.fallbackLimiters, 2)
	limiter.fallbackMutex.RUnlock()
}

func TestRateLimiterStats(t *testing.T) {
	redisClient := &RedisClient{enabled: false}
	limiter := NewRateLimiter(redisClient, DefaultConfig(), monitoring.NewMetrics())

	_, err := limiter.AllowIP(context.Background(), "192.0.2.1")
	require.NoError(t, err)

	stats := limiter.GetStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.Equal(t, 1, stats["fallback_limiters"])
}
