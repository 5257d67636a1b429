//go:build integration

package rediscache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testAddress string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		panic(fmt.Sprintf("failed to start Redis container: %v", err))
	}

	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		panic(err)
	}
	testAddress = fmt.Sprintf("%s:%s", host, port.Port())

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestCacheAgainstServer(t *testing.T) {
	ctx := context.Background()

	client, err := Connect(ctx, Options{Address: testAddress, Timeout: 5 * time.Second})
	require.NoError(t, err)

	cache := NewCache(client, time.Minute)
	defer cache.Close()

	require.NoError(t, cache.Save(ctx, "it:user:1", map[string]any{"name": "a"}, 0))
	require.NoError(t, cache.Save(ctx, "it:user:2", map[string]any{"name": "b"}, 0))

	var value map[string]any
	found, err := cache.Get(ctx, "it:user:1", &value)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a", value["name"])

	// The pattern delete runs as a server-side script.
	deleted, err := cache.DeleteByPattern(ctx, "it:user:*")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	keys, err := cache.Keys(ctx, "it:user:*")
	require.NoError(t, err)
	require.Empty(t, keys)
}
