package inventory

import (
	"context"
	"encoding/json"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-local-market/internal/kafka"
	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/redisx"
)

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	SeenBefore(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// StatsWriter is satisfied by *redisx.Stats.
type StatsWriter interface {
	Incr(ctx context.Context, shopID int64, deltas map[string]int64) error
}

// StatsProjector folds booking events into per-shop counters. It is installed
// as the worker's consumer handler.
type StatsProjector struct {
	Stats StatsWriter
	Dedup Deduper
}

func (p *StatsProjector) HandleBookingEvent(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case market.EventBookingCreated, market.EventBookingStatusChanged, market.EventBookingExpired:
	default:
		return nil // ignore
	}

	payload, err := kafkax.UnwrapPayload[market.BookingEventPayload](env.Payload)
	if err != nil {
		return err
	}
	deltas := statDeltas(env.EventType, payload)
	if payload.ShopID == 0 || len(deltas) == 0 {
		return nil
	}

	if p.Dedup != nil {
		seen, err := p.Dedup.SeenBefore(ctx, env.EventID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if err := p.Stats.Incr(ctx, payload.ShopID, deltas); err != nil {
		if p.Dedup != nil {
			if ferr := p.Dedup.Forget(ctx, env.EventID); ferr != nil {
				log.Printf("stats: forget %s: %v", env.EventID, ferr)
			}
		}
		return err
	}
	return nil
}

func statDeltas(eventType string, p market.BookingEventPayload) map[string]int64 {
	qty := int64(p.Quantity)
	switch eventType {
	case market.EventBookingCreated:
		return map[string]int64{redisx.StatBookings: 1, redisx.StatUnitsReserved: qty}
	case market.EventBookingExpired:
		return map[string]int64{redisx.StatExpired: 1, redisx.StatUnitsReleased: qty}
	case market.EventBookingStatusChanged:
		switch p.Status {
		case market.StatusConfirmed:
			return map[string]int64{redisx.StatConfirmed: 1}
		case market.StatusCompleted:
			return map[string]int64{redisx.StatCompleted: 1}
		case market.StatusCancelled:
			return map[string]int64{redisx.StatCancelled: 1, redisx.StatUnitsReleased: qty}
		}
	}
	return nil
}
