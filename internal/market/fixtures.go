package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// FixtureOwner is the shopkeeper account created together with one of the
// fixture shops. Owners are listed in shop order.
type FixtureOwner struct {
	Username string
	Email    string
}

var FixtureOwners = []FixtureOwner{
	{Username: "greenvalley", Email: "owner@greenvalley.example"},
	{Username: "organicmart", Email: "owner@organicmart.example"},
	{Username: "citysuper", Email: "owner@citysuper.example"},
}

// FixtureShops are inserted in order, so they receive ids 1, 2, 3. OwnerID is
// left 0; seeding sets it from the owner accounts it creates, and a shop
// without one cannot be managed by anybody.
func FixtureShops() []Shop {
	return []Shop{
		{Name: "Green Valley Store", Address: "123 Main Street, Downtown",
			Latitude: 28.6139, Longitude: 77.2090, Rating: 4.2, TotalRatings: 150},
		{Name: "Organic Mart", Address: "456 Health Avenue, Central",
			Latitude: 28.6200, Longitude: 77.2100, Rating: 4.8, TotalRatings: 89},
		{Name: "City Supermarket", Address: "789 Commerce Road, East",
			Latitude: 28.6150, Longitude: 77.2150, Rating: 4.1, TotalRatings: 220},
	}
}

// FixtureProducts reference shops by the ids FixtureShops will receive.
func FixtureProducts() []NewProduct {
	return []NewProduct{
		{Name: "Fresh Milk", Brand: "Amul", Price: price("62.00"), Stock: 8,
			Category: "Dairy", ExpiryDate: day(2024, 1, 25), ShopID: 1},
		{Name: "Organic Milk", Brand: "Mother Dairy", Price: price("78.00"), Stock: 2,
			Category: "Dairy", ExpiryDate: day(2024, 1, 22), ShopID: 2},
		{Name: "Full Cream Milk", Brand: "Nestle", Price: price("58.00"), Stock: 15,
			Category: "Dairy", ExpiryDate: day(2024, 1, 28), ShopID: 3},
		{Name: "Wheat Bread", Brand: "Britannia", Price: price("25.00"), Stock: 0,
			Category: "Bakery", ExpiryDate: day(2024, 1, 20), ShopID: 1},
		{Name: "Brown Bread", Brand: "Harvest Gold", Price: price("30.00"), Stock: 12,
			Category: "Bakery", ExpiryDate: day(2024, 1, 24), ShopID: 2},
	}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
