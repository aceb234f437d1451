package market

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductUpdate_Apply(t *testing.T) {
	p := Product{ID: 7, Name: "Fresh Milk", Brand: "Amul", Price: decimal.RequireFromString("62.00"),
		Stock: 8, Category: "Dairy", ShopID: 1}

	name := "  Toned Milk "
	stock := 20
	price := decimal.RequireFromString("59.499")
	got := ProductUpdate{Name: &name, Stock: &stock, Price: &price}.Apply(p)

	if got.Name != "Toned Milk" {
		t.Errorf("expected trimmed name, got %q", got.Name)
	}
	if got.Stock != 20 {
		t.Errorf("expected stock 20, got %d", got.Stock)
	}
	if !got.Price.Equal(decimal.RequireFromString("59.50")) {
		t.Errorf("expected price rounded to 59.50, got %s", got.Price)
	}
	if got.Brand != "Amul" || got.Category != "Dairy" || got.ShopID != 1 || got.ID != 7 {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestProductUpdate_Validate(t *testing.T) {
	empty := " "
	neg := -1
	negPrice := decimal.NewFromInt(-5)
	cases := []ProductUpdate{
		{Name: &empty},
		{Category: &empty},
		{Stock: &neg},
		{Price: &negPrice},
	}
	for _, c := range cases {
		if err := c.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation for %+v, got %v", c, err)
		}
	}
	if !(ProductUpdate{}).Empty() {
		t.Error("expected zero update to be empty")
	}
}

func TestNewProduct_Validate(t *testing.T) {
	ok := NewProduct{Name: "Eggs", Category: "Poultry", ShopID: 1, Price: decimal.NewFromInt(6)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := ok
	bad.ShopID = 0
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing shop, got %v", err)
	}
	bad = ok
	bad.Stock = -3
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for negative stock, got %v", err)
	}
}

func TestNewUser_Validate(t *testing.T) {
	if err := (NewUser{Username: "asha", Password: "secret1"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (NewUser{Username: "as", Password: "secret1"}).Validate(); err == nil {
		t.Error("expected short username to fail")
	}
	if err := (NewUser{Username: "asha", Password: "123"}).Validate(); err == nil {
		t.Error("expected short password to fail")
	}
	if err := (NewUser{Username: "asha", Password: "secret1", Role: "admin"}).Validate(); err == nil {
		t.Error("expected unknown role to fail")
	}
	long := strings.Repeat("p", MaxPasswordBytes+8)
	if err := (NewUser{Username: "asha", Password: long}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for %d-byte password, got %v", len(long), err)
	}
	if err := (NewUser{Username: "asha", Password: long[:MaxPasswordBytes]}).Validate(); err != nil {
		t.Errorf("expected %d-byte password to pass, got %v", MaxPasswordBytes, err)
	}
}

func TestNewShop_ValidateCoordinates(t *testing.T) {
	ok := NewShop{Name: "Corner Store", Address: "1 Ring Road", Latitude: 28.61, Longitude: 77.21}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range []struct{ lat, lng float64 }{
		{math.NaN(), 77.21},
		{28.61, math.NaN()},
		{math.Inf(1), 77.21},
		{28.61, 181},
	} {
		bad := ok
		bad.Latitude, bad.Longitude = c.lat, c.lng
		if err := bad.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation for (%v, %v), got %v", c.lat, c.lng, err)
		}
	}
}
