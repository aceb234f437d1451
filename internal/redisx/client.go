package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// SeenBefore marks key as processed and reports whether it already was.
func SeenBefore(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	fresh, err := rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Dedup remembers processed event ids for one consumer scope.
type Dedup struct {
	Client *redis.Client
	Scope  string
}

func NewDedup(rdb *redis.Client, scope string) *Dedup { return &Dedup{Client: rdb, Scope: scope} }

func (d *Dedup) SeenBefore(ctx context.Context, eventID string) (bool, error) {
	return SeenBefore(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Scope, eventID), TTLDedup)
}

// Forget drops eventID so a failed attempt can be redelivered.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.Client.Del(ctx, fmt.Sprintf(KeyDedup, d.Scope, eventID)).Err()
}
