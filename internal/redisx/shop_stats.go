package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Shop stats hash fields.
const (
	StatBookings      = "bookings"
	StatUnitsReserved = "units_reserved"
	StatConfirmed     = "confirmed"
	StatCompleted     = "completed"
	StatCancelled     = "cancelled"
	StatExpired       = "expired"
	StatUnitsReleased = "units_released"
)

type ShopStats struct {
	Bookings      int64 `json:"bookings"`
	UnitsReserved int64 `json:"unitsReserved"`
	Confirmed     int64 `json:"confirmed"`
	Completed     int64 `json:"completed"`
	Cancelled     int64 `json:"cancelled"`
	Expired       int64 `json:"expired"`
	UnitsReleased int64 `json:"unitsReleased"`
}

type Stats struct {
	Client *redis.Client
}

func NewStats(rdb *redis.Client) *Stats { return &Stats{Client: rdb} }

// Incr applies several counter deltas to one shop in a single round trip.
func (s *Stats) Incr(ctx context.Context, shopID int64, deltas map[string]int64) error {
	key := fmt.Sprintf(KeyShopStats, shopID)
	_, err := s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for f, d := range deltas {
			p.HIncrBy(ctx, key, f, d)
		}
		return nil
	})
	return err
}

func (s *Stats) Get(ctx context.Context, shopID int64) (ShopStats, error) {
	m, err := s.Client.HGetAll(ctx, fmt.Sprintf(KeyShopStats, shopID)).Result()
	if err != nil {
		return ShopStats{}, err
	}
	n := func(f string) int64 {
		v, _ := strconv.ParseInt(m[f], 10, 64)
		return v
	}
	return ShopStats{
		Bookings:      n(StatBookings),
		UnitsReserved: n(StatUnitsReserved),
		Confirmed:     n(StatConfirmed),
		Completed:     n(StatCompleted),
		Cancelled:     n(StatCancelled),
		Expired:       n(StatExpired),
		UnitsReleased: n(StatUnitsReleased),
	}, nil
}
