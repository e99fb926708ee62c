package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "agrimacro")
	cfg := SourceRateLimit("eia", 30)

	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 30, remaining)
	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "agrimacro")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, SnapshotKey("prices"), map[string]string{"a": "b"}, TTLWeekly))

	var result map[string]string
	found, err := cache.Get(ctx, SnapshotKey("prices"), &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, SnapshotKey("prices")))
}

func TestCache_GetOrSetDisabledCallsLoader(t *testing.T) {
	cache := NewCache(disabledClient(t), "agrimacro")

	calls := 0
	var dest []int
	err := cache.GetOrSet(context.Background(), "k", &dest, TTLShort, func() (interface{}, error) {
		calls++
		return []int{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1, 2}, dest)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "snapshot:cot", SnapshotKey("cot"))
	assert.Equal(t, "processed:spreads:2026-03-02", ProcessedKey("spreads", "2026-03-02"))

	cfg := SourceRateLimit("usda_fas", 60)
	assert.Equal(t, "source:usda_fas", cfg.Key)
	assert.Equal(t, time.Minute, cfg.Window)
}
