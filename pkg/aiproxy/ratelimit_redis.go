package aiproxy

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces the same fixed-window counters as
// MemoryRateLimiter but shares them across engine instances. The counter key
// expires with the window, which gives the lazy reset for free.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, userID, provider string) (bool, error) {
	key := fmt.Sprintf("flowd:ratelimit:%s:%s", userID, provider)
	limit := RateLimit(provider)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, RateWindow).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry failed: %w", err)
		}
	}

	return count <= int64(limit), nil
}
