package auth

import (
	"fmt"

	"github.com/ariefcatur/go-local-market/internal/market"
)

type Capability int

const (
	// ManageShop covers product writes, shop bookings, and shop stats.
	ManageShop Capability = iota
	ViewOwnedShops
	ViewCustomerBookings
	ModifyBooking
	OpenShop
)

func (c Capability) String() string {
	switch c {
	case ManageShop:
		return "manage shop"
	case ViewOwnedShops:
		return "view owned shops"
	case ViewCustomerBookings:
		return "view customer bookings"
	case ModifyBooking:
		return "modify booking"
	case OpenShop:
		return "open shop"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Resource names the parties that own the target of an action. Zero means
// "none"; a missing shop is passed as the zero Resource and is always denied.
type Resource struct {
	OwnerID    int64 // shop owner
	CustomerID int64 // booking customer
}

// Authorize is the one place ownership rules live.
func Authorize(p Principal, c Capability, r Resource) error {
	allowed := false
	switch c {
	case ManageShop, ViewOwnedShops:
		allowed = r.OwnerID != 0 && p.ID == r.OwnerID
	case ViewCustomerBookings:
		allowed = r.CustomerID != 0 && p.ID == r.CustomerID
	case ModifyBooking:
		allowed = (r.OwnerID != 0 && p.ID == r.OwnerID) || (r.CustomerID != 0 && p.ID == r.CustomerID)
	case OpenShop:
		allowed = p.Role == market.RoleShopkeeper
	}
	if !allowed {
		return fmt.Errorf("user %d may not %s: %w", p.ID, c, market.ErrForbidden)
	}
	return nil
}

// BookingTransitionAllowed applies role rules on top of the status table:
// customers may only cancel, shop owners may make any valid move.
func BookingTransitionAllowed(p Principal, r Resource, to market.BookingStatus) error {
	if r.OwnerID != 0 && p.ID == r.OwnerID {
		return nil
	}
	if to == market.StatusCancelled {
		return nil
	}
	return fmt.Errorf("customer may only cancel, not set %s: %w", to, market.ErrForbidden)
}
