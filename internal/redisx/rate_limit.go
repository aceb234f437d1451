package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Allow counts one hit for scope/client in a fixed window and reports whether
// the client is still within limit.
func Allow(ctx context.Context, rdb *redis.Client, scope, client string, limit int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, scope, client)
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return true, err
		}
	}
	return count <= limit, nil
}

// RateLimiter applies one fixed-window limit to every scope it is asked about.
type RateLimiter struct {
	Client *redis.Client
	Limit  int64
	Window time.Duration
}

func NewRateLimiter(rdb *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{Client: rdb, Limit: limit, Window: window}
}

func (l *RateLimiter) Allow(ctx context.Context, scope, client string) (bool, error) {
	return Allow(ctx, l.Client, scope, client, l.Limit, l.Window)
}
