package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis.
// Shared across processes (CLI + scheduler) so one provider budget is respected.
// ⭐ SSOT: 분산 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	poll   time.Duration
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // provider name (e.g., "polygon", "unusualwhales")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// PerMinute builds a config for a provider's per-minute budget
func PerMinute(key string, limit int) RateLimitConfig {
	return RateLimitConfig{Key: key, Limit: limit, Window: time.Minute}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		poll:   250 * time.Millisecond,
	}
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	else
		return {0, 0}
	end
`)

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		fmt.Sprintf("%d-%s", now, uuid.NewString()), // 같은 ms의 다른 프로세스와 구분
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	return result[0] == 1, int(result[1]), nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

// Bound is a RateLimiter fixed to one config; it satisfies httputil.Limiter
type Bound struct {
	limiter *RateLimiter
	cfg     RateLimitConfig
}

// Bind fixes the limiter to cfg
func (r *RateLimiter) Bind(cfg RateLimitConfig) *Bound {
	return &Bound{limiter: r, cfg: cfg}
}

// Wait blocks until the bound budget allows one call
func (b *Bound) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx, b.cfg)
}
