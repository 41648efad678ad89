package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed window counter shared by every instance.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(r *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: r, prefix: prefix, limit: limit, window: window}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:ratelimit:%s", r.prefix, key)
	var count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, r.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return count.Val() <= int64(r.limit), nil
}
