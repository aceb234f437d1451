package market

import (
	"math"
	"sort"
	"strings"
)

// DefaultOrigin is the reference point used when a search has no coordinates.
var DefaultOrigin = Point{Lat: 28.6139, Lng: 77.2090}

const DefaultMaxDistanceKm = 10.0

type SearchQuery struct {
	Text          string
	Origin        *Point
	MaxDistanceKm *float64
}

// Normalize trims the text, fills defaults, and validates the query.
func (q SearchQuery) Normalize(origin Point, maxKm float64) (SearchQuery, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, Invalid("query parameter 'q' is required")
	}
	if q.Origin == nil {
		o := origin
		q.Origin = &o
	}
	if !q.Origin.Valid() {
		return q, Invalid("coordinates out of range")
	}
	if q.MaxDistanceKm == nil {
		m := maxKm
		q.MaxDistanceKm = &m
	}
	if km := *q.MaxDistanceKm; math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return q, Invalid("distance must be a finite, non-negative number")
	}
	return q, nil
}

// Matches reports whether p is in stock and its name, brand, or category
// contains text, ignoring case.
func Matches(p Product, text string) bool {
	if p.Stock <= 0 {
		return false
	}
	t := strings.ToLower(text)
	return strings.Contains(strings.ToLower(p.Name), t) ||
		strings.Contains(strings.ToLower(p.Brand), t) ||
		strings.Contains(strings.ToLower(p.Category), t)
}

// Rank stamps each candidate with its distance from origin, drops those beyond
// maxKm, and orders the rest by distance then product id.
func Rank(candidates []ProductWithShop, origin Point, maxKm float64) []ProductWithShop {
	out := make([]ProductWithShop, 0, len(candidates))
	for _, c := range candidates {
		c.Distance = Distance(origin, c.Shop.Location())
		if c.Distance > maxKm {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}
