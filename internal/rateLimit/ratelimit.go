package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/eventhall/ticketing/internal/adapters/redis"
	"github.com/eventhall/ticketing/internal/observability"
)

type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	count, err := rl.redis.IncrWithTTL(ctx, "rl:"+key, period)
	if err != nil {
		// fail open
		return true
	}
	if count > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
