package market

import (
	"context"
	"time"
)

type UserStore interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// CreateUser fails with ErrConflict when the username is taken.
	CreateUser(ctx context.Context, u NewUser) (User, error)
}

type ShopStore interface {
	GetShop(ctx context.Context, id int64) (Shop, error)
	ShopsByOwner(ctx context.Context, ownerID int64) ([]Shop, error)
	CreateShop(ctx context.Context, s NewShop) (Shop, error)
}

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ProductsByShop(ctx context.Context, shopID int64) ([]Product, error)
	// MatchProducts returns in-stock products whose name, brand, or category
	// contains text, joined with their shop. Orphaned products are skipped.
	MatchProducts(ctx context.Context, text string) ([]ProductWithShop, error)
	CreateProduct(ctx context.Context, p NewProduct) (Product, error)
	UpdateProduct(ctx context.Context, id int64, u ProductUpdate) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (BookingWithDetails, error)
	BookingsByUser(ctx context.Context, userID int64) ([]BookingWithDetails, error)
	BookingsByShop(ctx context.Context, shopID int64) ([]BookingWithDetails, error)
	// CreateBooking checks stock, decrements it, and inserts the booking as one
	// atomic step. It fails with ErrInsufficientStock and changes nothing when
	// stock < quantity.
	CreateBooking(ctx context.Context, b NewBooking) (Booking, error)
	// SetBookingStatus moves a booking from one status to another, restocking
	// when the new status releases units. It fails with ErrInvalidTransition if
	// the stored status is no longer from.
	SetBookingStatus(ctx context.Context, id int64, from, to BookingStatus) (Booking, error)
	// ExpirePending cancels every pending booking with ExpiresAt <= now and
	// returns their quantities to stock.
	ExpirePending(ctx context.Context, now time.Time) ([]Booking, error)
}

type Store interface {
	UserStore
	ShopStore
	ProductStore
	BookingStore
}
