// Package memstore is an in-process market.Store. A single RWMutex guards all
// four collections, so every write, including check-and-decrement on
// reservation, is serialized.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-local-market/internal/market"
)

type Store struct {
	mu       sync.RWMutex
	users    map[int64]market.User
	shops    map[int64]market.Shop
	products map[int64]market.Product
	bookings map[int64]market.Booking

	nextUser, nextShop, nextProduct, nextBooking int64
}

var _ market.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       map[int64]market.User{},
		shops:       map[int64]market.Shop{},
		products:    map[int64]market.Product{},
		bookings:    map[int64]market.Booking{},
		nextUser:    1,
		nextShop:    1,
		nextProduct: 1,
		nextBooking: 1,
	}
}

// NewSeeded returns a store holding the fixture shops and products. owners,
// when given, are created first and take the fixture shops in order; shops
// beyond len(owners) have no owner.
func NewSeeded(owners ...market.NewUser) *Store {
	s := New()
	for i, sh := range market.FixtureShops() {
		if i < len(owners) {
			u := s.addUser(owners[i])
			sh.OwnerID = u.ID
		}
		sh.ID = s.nextShop
		s.nextShop++
		s.shops[sh.ID] = sh
	}
	for _, p := range market.FixtureProducts() {
		s.insertProduct(p)
	}
	return s
}

// ---- users ----

func (s *Store) GetUser(_ context.Context, id int64) (market.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return market.User{}, fmt.Errorf("user %d: %w", id, market.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (market.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return market.User{}, fmt.Errorf("user %q: %w", username, market.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, in market.NewUser) (market.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return market.User{}, fmt.Errorf("username %q already exists: %w", in.Username, market.ErrConflict)
		}
	}
	return s.addUser(in), nil
}

// addUser expects s.mu held, or a store not yet shared.
func (s *Store) addUser(in market.NewUser) market.User {
	u := market.User{
		ID:       s.nextUser,
		Username: in.Username,
		Password: in.Password,
		Role:     in.Role,
		Email:    in.Email,
	}
	s.nextUser++
	s.users[u.ID] = u
	return u
}

// ---- shops ----

func (s *Store) GetShop(_ context.Context, id int64) (market.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shops[id]
	if !ok {
		return market.Shop{}, fmt.Errorf("shop %d: %w", id, market.ErrNotFound)
	}
	return sh, nil
}

func (s *Store) ShopsByOwner(_ context.Context, ownerID int64) ([]market.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []market.Shop{}
	for _, sh := range s.shops {
		if sh.OwnerID == ownerID {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateShop(_ context.Context, in market.NewShop) (market.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := market.Shop{
		ID:        s.nextShop,
		Name:      strings.TrimSpace(in.Name),
		OwnerID:   in.OwnerID,
		Address:   strings.TrimSpace(in.Address),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	s.nextShop++
	s.shops[sh.ID] = sh
	return sh, nil
}

// ---- products ----

func (s *Store) GetProduct(_ context.Context, id int64) (market.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return market.Product{}, fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ProductsByShop(_ context.Context, shopID int64) ([]market.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []market.Product{}
	for _, p := range s.products {
		if p.ShopID == shopID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MatchProducts(_ context.Context, text string) ([]market.ProductWithShop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.ProductWithShop
	for _, p := range s.products {
		if !market.Matches(p, text) {
			continue
		}
		sh, ok := s.shops[p.ShopID]
		if !ok {
			continue
		}
		out = append(out, market.ProductWithShop{Product: p, Shop: sh})
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, in market.NewProduct) (market.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertProduct(in), nil
}

func (s *Store) insertProduct(in market.NewProduct) market.Product {
	p := market.Product{
		ID:         s.nextProduct,
		Name:       strings.TrimSpace(in.Name),
		Brand:      in.Brand,
		Price:      in.Price.Round(2),
		Stock:      in.Stock,
		Category:   strings.TrimSpace(in.Category),
		ExpiryDate: in.ExpiryDate,
		ShopID:     in.ShopID,
	}
	s.nextProduct++
	s.products[p.ID] = p
	return p
}

func (s *Store) UpdateProduct(_ context.Context, id int64, u market.ProductUpdate) (market.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return market.Product{}, fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	p = u.Apply(p)
	s.products[id] = p
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

// ---- bookings ----

func (s *Store) GetBooking(_ context.Context, id int64) (market.BookingWithDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return market.BookingWithDetails{}, fmt.Errorf("booking %d: %w", id, market.ErrNotFound)
	}
	d, ok := s.details(b)
	if !ok {
		return market.BookingWithDetails{}, fmt.Errorf("booking %d references missing rows: %w", id, market.ErrNotFound)
	}
	return d, nil
}

func (s *Store) BookingsByUser(_ context.Context, userID int64) ([]market.BookingWithDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(d market.BookingWithDetails) bool { return d.UserID == userID }), nil
}

func (s *Store) BookingsByShop(_ context.Context, shopID int64) ([]market.BookingWithDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(d market.BookingWithDetails) bool { return d.Shop.ID == shopID }), nil
}

func (s *Store) collect(keep func(market.BookingWithDetails) bool) []market.BookingWithDetails {
	out := []market.BookingWithDetails{}
	for _, b := range s.bookings {
		d, ok := s.details(b)
		if !ok || !keep(d) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) details(b market.Booking) (market.BookingWithDetails, bool) {
	p, ok := s.products[b.ProductID]
	if !ok {
		return market.BookingWithDetails{}, false
	}
	u, ok := s.users[b.UserID]
	if !ok {
		return market.BookingWithDetails{}, false
	}
	sh, ok := s.shops[p.ShopID]
	if !ok {
		return market.BookingWithDetails{}, false
	}
	return market.BookingWithDetails{Booking: b, Product: p, Shop: sh, User: u}, true
}

func (s *Store) CreateBooking(_ context.Context, in market.NewBooking) (market.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[in.ProductID]
	if !ok {
		return market.Booking{}, fmt.Errorf("product %d: %w", in.ProductID, market.ErrNotFound)
	}
	if p.Stock < in.Quantity {
		return market.Booking{}, fmt.Errorf("product %d has %d, need %d: %w",
			p.ID, p.Stock, in.Quantity, market.ErrInsufficientStock)
	}

	p.Stock -= in.Quantity
	b := market.Booking{
		ID:        s.nextBooking,
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Status:    market.StatusPending,
		BookedAt:  in.BookedAt,
		ExpiresAt: in.ExpiresAt,
	}
	s.nextBooking++
	s.products[p.ID] = p
	s.bookings[b.ID] = b
	return b, nil
}

func (s *Store) SetBookingStatus(_ context.Context, id int64, from, to market.BookingStatus) (market.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return market.Booking{}, fmt.Errorf("booking %d: %w", id, market.ErrNotFound)
	}
	if b.Status != from || !market.CanTransition(from, to) {
		return market.Booking{}, fmt.Errorf("booking %d is %s, cannot move to %s: %w",
			id, b.Status, to, market.ErrInvalidTransition)
	}
	b.Status = to
	s.bookings[id] = b
	if to.Releases() {
		s.restock(b)
	}
	return b, nil
}

func (s *Store) ExpirePending(_ context.Context, now time.Time) ([]market.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []market.Booking
	for id, b := range s.bookings {
		if b.Status != market.StatusPending || b.ExpiresAt.After(now) {
			continue
		}
		b.Status = market.StatusCancelled
		s.bookings[id] = b
		s.restock(b)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// restock returns b's units to its product; a deleted product is ignored.
func (s *Store) restock(b market.Booking) {
	if p, ok := s.products[b.ProductID]; ok {
		p.Stock += b.Quantity
		s.products[p.ID] = p
	}
}
