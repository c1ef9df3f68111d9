package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/event-admissions/internal/adapters/redis"
)

// RateLimiter is a fixed-window counter in redis, keyed by participant or
// client IP.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	// Only arm the window when the counter is created; refreshing the TTL
	// on every hit would keep a steadily retrying client blocked forever.
	pipe.ExpireNX(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		// Fail open: a broken limiter must not reject admissions.
		return true
	}

	return incr.Val() <= int64(rate)
}
