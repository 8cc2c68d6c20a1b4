package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return NewRedisStore(client, "test"), server
}

func TestRedisStore_SlidingWindow(t *testing.T) {
	store, _ := newTestRedis(t)
	ctx := context.Background()
	rule := Rule{Name: "auth", Limit: 3, Window: time.Minute}
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		info, err := store.Take(ctx, "auth:192.0.2.1", rule, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, info.Allowed)
		assert.Equal(t, 2-i, info.Remaining)
	}

	denied, err := store.Take(ctx, "auth:192.0.2.1", rule, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.InDelta(t, float64(50*time.Second), float64(denied.RetryAfter), float64(time.Millisecond),
		"window reopens when the oldest attempt ages out")

	again, err := store.Take(ctx, "auth:192.0.2.1", rule, now.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, again.Allowed)
	assert.Equal(t, 0, again.Remaining)

	other, err := store.Take(ctx, "auth:192.0.2.2", rule, now)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRedisStore_DeniedAttemptsAreNotRecorded(t *testing.T) {
	store, server := newTestRedis(t)
	ctx := context.Background()
	rule := Rule{Name: "auth", Limit: 1, Window: time.Minute}
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	_, err := store.Take(ctx, "auth:client", rule, now)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		info, err := store.Take(ctx, "auth:client", rule, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.False(t, info.Allowed)
	}

	members, err := server.ZMembers("test:auth:client")
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, time.Minute, server.TTL("test:auth:client"))
}

func TestRedisStore_ConcurrentTakesNeverExceedLimit(t *testing.T) {
	store, server := newTestRedis(t)
	rule := Rule{Name: "auth", Limit: 5, Window: 15 * time.Minute}
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := store.Take(context.Background(), "auth:192.0.2.1", rule, now)
			if err == nil && info.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
	members, err := server.ZMembers("test:auth:192.0.2.1")
	require.NoError(t, err)
	assert.Len(t, members, 5)
}

func TestRedisStore_Unreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test")
	server.Close()

	_, err = store.Take(context.Background(), "auth:client", Rule{Name: "auth", Limit: 1, Window: time.Minute}, time.Now())
	assert.Error(t, err)
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_Key(t *testing.T) {
	assert.Equal(t, DefaultKeyPrefix+":auth:1.2.3.4", NewRedisStore(nil, "").key("auth:1.2.3.4"))
	assert.Equal(t, "p:k", NewRedisStore(nil, "p").key("k"))
}
