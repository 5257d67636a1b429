package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options holds the connection settings for a Redis server.
type Options struct {
	Address  string
	Username string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect opens a Redis client and verifies the server answers a ping
// before handing it out.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
