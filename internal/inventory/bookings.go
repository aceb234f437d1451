package inventory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/market"
)

type ReserveRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  *int  `json:"quantity"` // nil means 1
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// Reserve books units of a product for actor. Stock is checked and decremented
// by the store in one atomic step. A repeated IdempotencyKey returns the
// booking created by the first request.
func (s *Service) Reserve(ctx context.Context, actor auth.Principal, req ReserveRequest) (market.Booking, error) {
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty < 1 {
		return market.Booking{}, market.Invalid("quantity must be at least 1")
	}
	if req.ProductID <= 0 {
		return market.Booking{}, market.Invalid("productId is required")
	}

	claimed := false
	if req.IdempotencyKey != "" && s.Idem != nil {
		ok, existing, err := s.Idem.Claim(ctx, actor.ID, req.IdempotencyKey)
		switch {
		case err != nil:
			log.Printf("idempotency claim user=%d: %v", actor.ID, err)
		case ok:
			claimed = true
		case existing == 0:
			return market.Booking{}, fmt.Errorf("request with this idempotency key is in progress: %w", market.ErrConflict)
		default:
			d, err := s.Store.GetBooking(ctx, existing)
			if err != nil {
				return market.Booking{}, err
			}
			return d.Booking, nil
		}
	}

	b, shopID, err := s.reserve(ctx, actor.ID, req.ProductID, qty)
	if err != nil {
		if claimed {
			if rerr := s.Idem.Release(ctx, actor.ID, req.IdempotencyKey); rerr != nil {
				log.Printf("idempotency release user=%d: %v", actor.ID, rerr)
			}
		}
		return market.Booking{}, err
	}
	if claimed {
		if err := s.Idem.Complete(ctx, actor.ID, req.IdempotencyKey, b.ID); err != nil {
			log.Printf("idempotency complete user=%d booking=%d: %v", actor.ID, b.ID, err)
		}
	}

	s.invalidateSearch(ctx)
	s.publishBooking(ctx, market.TopicBookingCreated, market.EventBookingCreated, bookingPayload(b, shopID, ""))
	return b, nil
}

func (s *Service) reserve(ctx context.Context, userID, productID int64, qty int) (market.Booking, int64, error) {
	p, err := s.Store.GetProduct(ctx, productID)
	if err != nil {
		return market.Booking{}, 0, err
	}
	now := s.Now().UTC()
	b, err := s.Store.CreateBooking(ctx, market.NewBooking{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		BookedAt:  now,
		ExpiresAt: now.Add(s.BookingTTL),
	})
	if err != nil {
		return market.Booking{}, 0, err
	}
	return b, p.ShopID, nil
}

// UpdateBooking changes a booking's status. The customer may only cancel; the
// shop owner may make any move the status table allows.
func (s *Service) UpdateBooking(ctx context.Context, actor auth.Principal, id int64, u market.BookingUpdate) (market.Booking, error) {
	if err := u.Validate(); err != nil {
		return market.Booking{}, err
	}
	d, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return market.Booking{}, err
	}
	r := auth.Resource{OwnerID: d.Shop.OwnerID, CustomerID: d.UserID}
	if err := auth.Authorize(actor, auth.ModifyBooking, r); err != nil {
		return market.Booking{}, err
	}
	if err := auth.BookingTransitionAllowed(actor, r, u.Status); err != nil {
		return market.Booking{}, err
	}
	if !market.CanTransition(d.Status, u.Status) {
		return market.Booking{}, fmt.Errorf("booking %d is %s, cannot move to %s: %w",
			id, d.Status, u.Status, market.ErrInvalidTransition)
	}

	b, err := s.Store.SetBookingStatus(ctx, id, d.Status, u.Status)
	if err != nil {
		return market.Booking{}, err
	}
	if u.Status.Releases() {
		s.invalidateSearch(ctx)
	}
	s.publishBooking(ctx, market.TopicBookingStatusChanged, market.EventBookingStatusChanged,
		bookingPayload(b, d.Shop.ID, d.Status))
	return b, nil
}

// ExpireBookings cancels pending bookings whose hold ran out by now and
// returns their units to stock. It reports how many were expired.
func (s *Service) ExpireBookings(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.Store.ExpirePending(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	s.invalidateSearch(ctx)
	for _, b := range expired {
		var shopID int64
		if p, err := s.Store.GetProduct(ctx, b.ProductID); err == nil {
			shopID = p.ShopID
		}
		s.publishBooking(ctx, market.TopicBookingExpired, market.EventBookingExpired,
			bookingPayload(b, shopID, market.StatusPending))
	}
	return len(expired), nil
}

func (s *Service) BookingsByUser(ctx context.Context, actor auth.Principal, userID int64) ([]market.BookingWithDetails, error) {
	if err := auth.Authorize(actor, auth.ViewCustomerBookings, auth.Resource{CustomerID: userID}); err != nil {
		return nil, err
	}
	return s.Store.BookingsByUser(ctx, userID)
}

func (s *Service) BookingsByShop(ctx context.Context, actor auth.Principal, shopID int64) ([]market.BookingWithDetails, error) {
	if err := s.authorizeShop(ctx, actor, shopID); err != nil {
		return nil, err
	}
	return s.Store.BookingsByShop(ctx, shopID)
}

// RunExpirySweeper calls ExpireBookings on every tick until ctx ends.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.ExpireBookings(ctx, now)
			if err != nil {
				log.Printf("expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry sweep: cancelled %d booking(s)", n)
			}
		}
	}
}
