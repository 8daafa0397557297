package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"tipjar/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s)}

	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, NewHealthCheck(client).Ping(context.Background()))
	assert.Equal(t, "redis", NewHealthCheck(client).Name())
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s)}
	s.Close()

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return port
}

func TestProcessedEventStore(t *testing.T) {
	s, client := newTestClient(t)
	store := NewProcessedEventStore(client)
	ctx := context.Background()

	seen, err := store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := store.MarkProcessed(ctx, "evt_1", 72*time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt_1", 72*time.Hour)
	require.NoError(t, err)
	assert.False(t, again, "second mark of the same event should report false")

	seen, err = store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	s.FastForward(73 * time.Hour)
	seen, err = store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "marker should expire")
}

func TestProcessedEventStore_RedisDown(t *testing.T) {
	s, client := newTestClient(t)
	store := NewProcessedEventStore(client)
	s.Close()

	_, err := store.IsProcessed(context.Background(), "evt_1")
	assert.Error(t, err)
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "pi:u2:key-1"
	value := []byte(`{"clientSecret":"pi_1_secret","paymentIntentId":"pi_1"}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte(`{}`), time.Second))
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestRateLimitStore_Allow(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.Allow(ctx, "u1:payments", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := store.Allow(ctx, "u1:payments", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, int64(1_800_000_000/60+1)*60, res.ResetAt)

	other, err := store.Allow(ctx, "u2:payments", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRateLimitStore_NextWindow(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client)
	now := time.Unix(1_800_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	res, err := store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	now = now.Add(time.Minute)
	res, err = store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
