package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleShopkeeper Role = "shopkeeper"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleShopkeeper
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}

type Shop struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	OwnerID      int64   `json:"ownerId"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Rating       float64 `json:"rating"`
	TotalRatings int     `json:"totalRatings"`
}

func (s Shop) Location() Point { return Point{Lat: s.Latitude, Lng: s.Longitude} }

type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Category   string          `json:"category"`
	ExpiryDate *time.Time      `json:"expiryDate,omitempty"`
	ShopID     int64           `json:"shopId"`
}

// plainProduct has Product's fields without its methods.
type plainProduct Product

// MarshalJSON writes the price as a string with exactly two decimals.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainProduct
		Price string `json:"price"`
	}{plainProduct(p), p.Price.StringFixed(2)})
}

type Booking struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	ProductID int64         `json:"productId"`
	Quantity  int           `json:"quantity"`
	Status    BookingStatus `json:"status"`
	BookedAt  time.Time     `json:"bookedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// ProductWithShop is a search hit: the product, its shop, and the distance in
// km from the search origin.
type ProductWithShop struct {
	Product
	Shop     Shop    `json:"shop"`
	Distance float64 `json:"distance"`
}

// MarshalJSON is needed so the embedded Product's method does not hide Shop
// and Distance.
func (h ProductWithShop) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainProduct
		Price    string  `json:"price"`
		Shop     Shop    `json:"shop"`
		Distance float64 `json:"distance"`
	}{plainProduct(h.Product), h.Price.StringFixed(2), h.Shop, h.Distance})
}

type BookingWithDetails struct {
	Booking
	Product Product `json:"product"`
	Shop    Shop    `json:"shop"`
	User    User    `json:"user"`
}

// ---- input commands ----

type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
}

type NewShop struct {
	Name      string  `json:"name"`
	OwnerID   int64   `json:"-"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type NewProduct struct {
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Category   string          `json:"category"`
	ExpiryDate *time.Time      `json:"expiryDate"`
	ShopID     int64           `json:"shopId"`
}

// NewBooking is what the store persists on reservation; timestamps are set by
// the caller so the store stays clock-free.
type NewBooking struct {
	UserID    int64
	ProductID int64
	Quantity  int
	BookedAt  time.Time
	ExpiresAt time.Time
}
