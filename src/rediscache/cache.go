package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = time.Hour

// deleteByPatternScript removes every key matching the pattern server side,
// so the client does not have to round-trip the key list.
const deleteByPatternScript = `
local deleted = 0
for _, name in ipairs(redis.call('KEYS', KEYS[1])) do
	redis.call('DEL', name)
	deleted = deleted + 1
end
return deleted
`

// Cache stores JSON-encoded values under string keys with a default
// expiration window.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps a connected client. A zero ttl falls back to one hour.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("context", "Redis Cache"),
	}
}

func (c *Cache) expiration(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return c.ttl
	}
	return ttl
}

// Save stores the JSON encoding of value under key. A zero ttl uses the
// cache default.
func (c *Cache) Save(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.expiration(ttl)).Err(); err != nil {
		return fmt.Errorf("failed to save cache key %q: %w", key, err)
	}
	c.logger.Debug("cache saved", "key", key)
	return nil
}

// Get decodes the value stored under key into dest. It returns false when
// the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache value for key %q: %w", key, err)
	}
	return true, nil
}

// Update replaces the value stored under key, removing any previous entry
// first so the expiration window restarts.
func (c *Cache) Update(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to replace cache key %q: %w", key, err)
	}
	if err := c.Save(ctx, key, value, ttl); err != nil {
		return err
	}
	c.logger.Debug("cache updated", "key", key)
	return nil
}

// Delete removes the key and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	deleted, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache key %q: %w", key, err)
	}
	c.logger.Debug("cache deleted", "key", key, "existed", deleted > 0)
	return deleted > 0, nil
}

// DeleteByPattern removes every key matching the glob pattern and returns
// the number of keys removed.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	deleted, err := c.client.Eval(ctx, deleteByPatternScript, []string{pattern}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache keys matching %q: %w", pattern, err)
	}
	c.logger.Debug("cache pattern deleted", "pattern", pattern, "deleted", deleted)
	return deleted, nil
}

// Keys returns the keys matching the glob pattern.
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys matching %q: %w", pattern, err)
	}
	return keys, nil
}

// Flow implements the cache-aside flow: when the key holds a value it is
// decoded into dest, otherwise value is stored and copied to dest. With
// update the stored value is replaced regardless.
func (c *Cache) Flow(ctx context.Context, key string, value any, dest any, ttl time.Duration, update bool) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}

	if found && !update {
		c.logger.Debug("cache hit", "key", key)
		return nil
	}

	if found {
		if err := c.Update(ctx, key, value, ttl); err != nil {
			return err
		}
	} else {
		if err := c.Save(ctx, key, value, ttl); err != nil {
			return err
		}
	}

	// Round-trip through JSON so dest holds exactly what the cache does.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cache value for key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("error closing Redis client: %w", err)
	}
	return nil
}
