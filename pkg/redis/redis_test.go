package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minwoo-dev/folio/pkg/config"
)

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	defer client.Close()

	assert.False(t, client.Enabled())

	cache := NewCache(client, "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var dest map[string]int
	found, err := cache.Get(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "bars:AAPL:2024-01-01:2024-02-01", BarsKey("AAPL", "2024-01-01", "2024-02-01"))
	assert.Equal(t, "search:samsung", SearchKey("samsung"))
}

// Integration test: requires a reachable Redis at REDIS_HOST/REDIS_PORT.
func TestCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}

	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	client, err := New(&config.Config{Redis: config.RedisConfig{
		Host:    host,
		Port:    port,
		Enabled: true,
	}})
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "folio-test")
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		Close  float64 `json:"close"`
	}

	key := BarsKey("TEST", "2024-01-01", "2024-01-31")
	require.NoError(t, cache.Set(ctx, key, payload{Symbol: "TEST", Close: 101.5}, time.Minute))
	defer cache.Delete(ctx, key)

	var got payload
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "TEST", got.Symbol)
	assert.InDelta(t, 101.5, got.Close, 1e-9)
}
