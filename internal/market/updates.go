package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductUpdate lists the product fields an owner may change. Nil means keep.
// The owning shop is fixed at creation.
type ProductUpdate struct {
	Name       *string          `json:"name"`
	Brand      *string          `json:"brand"`
	Price      *decimal.Decimal `json:"price"`
	Stock      *int             `json:"stock"`
	Category   *string          `json:"category"`
	ExpiryDate *time.Time       `json:"expiryDate"`
}

func (u ProductUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Invalid("name must not be empty")
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return Invalid("category must not be empty")
	}
	if u.Price != nil && u.Price.IsNegative() {
		return Invalid("price must not be negative")
	}
	if u.Stock != nil && *u.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Brand == nil && u.Price == nil &&
		u.Stock == nil && u.Category == nil && u.ExpiryDate == nil
}

// Apply returns p with the update merged in.
func (u ProductUpdate) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Brand != nil {
		p.Brand = *u.Brand
	}
	if u.Price != nil {
		p.Price = u.Price.Round(2)
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Category != nil {
		p.Category = strings.TrimSpace(*u.Category)
	}
	if u.ExpiryDate != nil {
		d := *u.ExpiryDate
		p.ExpiryDate = &d
	}
	return p
}

// BookingUpdate is the only mutation allowed on an existing booking.
type BookingUpdate struct {
	Status BookingStatus `json:"status"`
}

func (u BookingUpdate) Validate() error {
	if !u.Status.Valid() {
		return Invalid("unknown status %q", u.Status)
	}
	return nil
}

func (n NewProduct) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return Invalid("name is required")
	}
	if strings.TrimSpace(n.Category) == "" {
		return Invalid("category is required")
	}
	if n.ShopID <= 0 {
		return Invalid("shopId is required")
	}
	if n.Price.IsNegative() {
		return Invalid("price must not be negative")
	}
	if n.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

func (n NewShop) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return Invalid("name is required")
	}
	if strings.TrimSpace(n.Address) == "" {
		return Invalid("address is required")
	}
	if !(Point{Lat: n.Latitude, Lng: n.Longitude}).Valid() {
		return Invalid("coordinates out of range")
	}
	return nil
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func (n NewUser) Validate() error {
	if l := len(strings.TrimSpace(n.Username)); l < 3 || l > 64 {
		return Invalid("username must be 3-64 characters")
	}
	if len(n.Password) < 6 {
		return Invalid("password must be at least 6 characters")
	}
	if len(n.Password) > MaxPasswordBytes {
		return Invalid("password must be at most %d bytes", MaxPasswordBytes)
	}
	if n.Role != "" && !n.Role.Valid() {
		return Invalid("unknown role %q", n.Role)
	}
	return nil
}
