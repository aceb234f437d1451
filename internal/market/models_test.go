package market

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestProduct_MarshalPriceTwoDecimals(t *testing.T) {
	cases := map[string]string{
		"62":    `"price":"62.00"`,
		"62.5":  `"price":"62.50"`,
		"0":     `"price":"0.00"`,
		"45.55": `"price":"45.55"`,
	}
	for in, want := range cases {
		b, err := json.Marshal(Product{ID: 1, Name: "Fresh Milk", Price: decimal.RequireFromString(in), Stock: 8})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(b), want) {
			t.Errorf("price %s: expected %s in %s", in, want, b)
		}
		if strings.Count(string(b), `"price"`) != 1 {
			t.Errorf("expected one price field, got %s", b)
		}
	}
}

func TestProductWithShop_MarshalKeepsShopAndDistance(t *testing.T) {
	hit := ProductWithShop{
		Product:  Product{ID: 2, Name: "Organic Milk", Price: decimal.RequireFromString("78"), Stock: 2, ShopID: 2},
		Shop:     Shop{ID: 2, Name: "Organic Mart"},
		Distance: 0.7,
	}
	b, err := json.Marshal(hit)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"price":"78.00"`, `"distance":0.7`, `"name":"Organic Mart"`, `"stock":2`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("expected %s in %s", want, b)
		}
	}

	var back ProductWithShop
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Price.Equal(hit.Price) || back.Shop.Name != "Organic Mart" || back.Distance != 0.7 {
		t.Errorf("unexpected decoded hit: %+v", back)
	}
}
