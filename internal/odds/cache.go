package odds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encodable values with a TTL.
type Cache interface {
	// Get decodes the value under key into dst. found is false on a miss.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Redis
// ──────────────────────────────────────────────────────────────────────────────

// ConnectRedis opens a client and checks it with PING.
func ConnectRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("odds.ConnectRedis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// RedisCache keeps quotes in Redis so every API instance shares one warm cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an open client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// In-process fallback
// ──────────────────────────────────────────────────────────────────────────────

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is used when no Redis address is configured. Values are stored
// JSON-encoded so callers get copies, matching the Redis behaviour.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expires) {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

func (c *MemoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = memEntry{data: b, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
