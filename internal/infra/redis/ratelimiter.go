package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	minRetryAfter            = 5 * time.Millisecond
	window                   = time.Second
	keyNamespace             = "campaign-dispatch:ratelimit"
)

// allowScript counts one call in the window key and answers {allowed, pttl}.
// pttl is how long the exhausted window still has to run.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return {0, redis.call("PTTL", KEYS[1])}
end
return {1, 0}
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a distributed per-second rate limiter backed by Redis,
// shared by every engine instance delivering for the same campaign.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	script      *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(
		client,
		int64(limitPerSec),
		time.Now,
		sleepWithContext,
	)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
		script:      allowScript,
	}, nil
}

// Allow counts one call against the key's current one-second window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := r.take(ctx, key)
	return allowed, err
}

// Wait blocks until the key is allowed or ctx ends. A rejected call sleeps
// until the current window expires instead of polling.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, retryAfter, err := r.take(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, 0, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false, 0, fmt.Errorf("rate limit key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bucket := windowKey(normalizedKey, r.now())
	result, err := r.script.Run(ctx, r.client, []string{bucket}, r.limitPerSec, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply %v", result)
	}

	if result[0] == 1 {
		return true, 0, nil
	}
	return false, retryAfter(result[1]), nil
}

func windowKey(key string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%d", keyNamespace, key, now.UTC().Unix())
}

func retryAfter(pttlMillis int64) time.Duration {
	d := time.Duration(pttlMillis) * time.Millisecond
	if d < minRetryAfter {
		return minRetryAfter
	}
	if d > window {
		return window
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
