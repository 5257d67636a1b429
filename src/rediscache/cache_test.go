package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, NewCache(client, ttl)
}

func TestConnect(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, Options{Address: server.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Connect(ctx, Options{})
	require.Error(t, err)

	_, err = Connect(ctx, Options{Address: "127.0.0.1:1", Timeout: time.Second})
	require.Error(t, err)
}

func TestSaveAndGet(t *testing.T) {
	_, cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "user:1", map[string]any{"name": "a", "score": 1}, 0))

	var value map[string]any
	found, err := cache.Get(ctx, "user:1", &value)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a", value["name"])

	found, err = cache.Get(ctx, "missing", &value)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDefaultTTLApplied(t *testing.T) {
	server, cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "k", "v", 0))
	require.Equal(t, time.Hour, server.TTL("k"))

	require.NoError(t, cache.Save(ctx, "short", "v", time.Minute))
	require.Equal(t, time.Minute, server.TTL("short"))
}

func TestExpiration(t *testing.T) {
	server, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "k", "v", 0))
	server.FastForward(2 * time.Minute)

	var value string
	found, err := cache.Get(ctx, "k", &value)
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpdateReplacesValue(t *testing.T) {
	_, cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "k", "old", 0))
	require.NoError(t, cache.Update(ctx, "k", "new", 0))

	var value string
	found, err := cache.Get(ctx, "k", &value)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", value)
}

func TestDelete(t *testing.T) {
	_, cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "k", "v", 0))

	existed, err := cache.Delete(ctx, "k")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = cache.Delete(ctx, "k")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestDeleteByPatternAndKeys(t *testing.T) {
	_, cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "user:1", "a", 0))
	require.NoError(t, cache.Save(ctx, "user:2", "b", 0))
	require.NoError(t, cache.Save(ctx, "task:1", "c", 0))

	keys, err := cache.Keys(ctx, "user:*")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	deleted, err := cache.DeleteByPattern(ctx, "user:*")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	keys, err = cache.Keys(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"task:1"}, keys)
}

func TestFlow(t *testing.T) {
	_, cache := newTestCache(t, 0)
	ctx := context.Background()

	// Miss stores the value.
	var got map[string]any
	require.NoError(t, cache.Flow(ctx, "k", map[string]any{"v": 1}, &got, 0, false))
	require.EqualValues(t, 1, got["v"])

	// Hit without update keeps the cached value.
	got = nil
	require.NoError(t, cache.Flow(ctx, "k", map[string]any{"v": 2}, &got, 0, false))
	require.EqualValues(t, 1, got["v"])

	// Hit with update replaces it.
	got = nil
	require.NoError(t, cache.Flow(ctx, "k", map[string]any{"v": 3}, &got, 0, true))
	require.EqualValues(t, 3, got["v"])
}
