package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const inFlight = "0"

// Idempotency guards booking creation with client-supplied keys.
type Idempotency struct {
	Client *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{Client: rdb} }

// Claim tries to take key for userID. When the key was already used it returns
// claimed=false and the booking id stored for it (0 while the first request is
// still running).
func (i *Idempotency) Claim(ctx context.Context, userID int64, key string) (claimed bool, bookingID int64, err error) {
	k := fmt.Sprintf(KeyIdemBooking, userID, key)
	ok, err := i.Client.SetNX(ctx, k, inFlight, TTLIdemInFlight).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	v, err := i.Client.Get(ctx, k).Result()
	if err == redis.Nil {
		// expired between SETNX and GET; treat as in flight
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("corrupt idempotency value %q: %w", v, err)
	}
	return false, id, nil
}

// Complete records the booking for key and keeps it for TTLIdempotency.
func (i *Idempotency) Complete(ctx context.Context, userID int64, key string, bookingID int64) error {
	k := fmt.Sprintf(KeyIdemBooking, userID, key)
	return i.Client.Set(ctx, k, bookingID, TTLIdempotency).Err()
}

// Release frees a claimed key after a failed attempt so the client can retry.
func (i *Idempotency) Release(ctx context.Context, userID int64, key string) error {
	return i.Client.Del(ctx, fmt.Sprintf(KeyIdemBooking, userID, key)).Err()
}
