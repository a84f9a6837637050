package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
	assert.Equal(t, TTLLong, client.DefaultTTL())
}

func TestOptions(t *testing.T) {
	opts := options(config.RedisConfig{Host: "cache.internal", Port: "6380", Password: "pw", DB: 2})
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestLocker_Disabled(t *testing.T) {
	locker := NewLocker(Disabled(), "test")

	ok, err := locker.TryLock(context.Background(), LockKey(1), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, locker.Unlock(context.Background(), LockKey(1)))
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"AnalysisResultKey", AnalysisResultKey(42), "analysis:result:42"},
		{"FeedKey", FeedKey("naver_index", "KOSPI", "2024-01-02", "2024-06-28"), "feed:naver_index:KOSPI:2024-01-02:2024-06-28"},
		{"LockKey", LockKey(7), "lock:analysis:7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

// Integration: requires a running Redis (REDIS_HOST)
func TestCacheAndLock_Redis(t *testing.T) {
	if os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host:    os.Getenv("REDIS_HOST"),
			Port:    "6379",
			Enabled: true,
			TTL:     time.Minute,
		},
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		cfg.Redis.Port = port
	}

	ctx := context.Background()
	client, err := New(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "factorlab_test")
	type payload struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, cache.Set(ctx, "k", payload{Score: 0.55}, 0))

	var got payload
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.55, got.Score)
	require.NoError(t, cache.Delete(ctx, "k"))

	locker := NewLocker(client, "factorlab_test")
	ok, err := locker.TryLock(ctx, LockKey(99), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.TryLock(ctx, LockKey(99), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second lock must fail")
	require.NoError(t, locker.Unlock(ctx, LockKey(99)))
}
