package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores upstream query bodies keyed by provider/endpoint/params
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get returns the cached bytes. Misses and a disabled client report found=false.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.client.Enabled() {
		return nil, false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}
	return data, true, nil
}

// Set stores bytes with TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	if err := c.client.Redis().Set(ctx, c.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// GetOrFetch returns the cached value or calls fn and stores its result.
// A cache write failure does not fail the call.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	return c.GetOrFetchValid(ctx, key, ttl, fn, nil)
}

// GetOrFetchValid is GetOrFetch that only stores bodies passing valid (nil = all).
// A rejected body is still returned to the caller.
func (c *Cache) GetOrFetchValid(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error), valid func([]byte) bool) ([]byte, error) {
	if data, found, err := c.Get(ctx, key); err == nil && found {
		return data, nil
	}

	data, err := fn()
	if err != nil {
		return nil, err
	}

	if valid == nil || valid(data) {
		_ = c.Set(ctx, key, data, ttl)
	}
	return data, nil
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute  // 옵션 스냅샷, 시세
	TTLMedium = 10 * time.Minute // 뉴스, flow alerts
	TTLLong   = 1 * time.Hour    // GEX strike exposures
	TTLDaily  = 24 * time.Hour   // IV rank
)

// QueryKey builds the cache key for one upstream query.
// encodedParams must not contain credentials.
func QueryKey(provider, endpoint, encodedParams string) string {
	return fmt.Sprintf("query:%s:%s?%s", provider, endpoint, encodedParams)
}
