// Package inventory holds the marketplace use cases: search, catalog writes,
// and the booking lifecycle. It sits between the HTTP layer and market.Store
// and owns the side effects (search cache, idempotency keys, booking events).
package inventory

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/redisx"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// SearchCache is satisfied by *redisx.SearchCache. Key pins the cache
// generation; Get and Set use the key it returned.
type SearchCache interface {
	Key(ctx context.Context, q market.SearchQuery) (string, error)
	Get(ctx context.Context, key string) ([]market.ProductWithShop, bool, error)
	Set(ctx context.Context, key string, res []market.ProductWithShop) error
	Invalidate(ctx context.Context) error
}

// IdempotencyKeys is satisfied by *redisx.Idempotency.
type IdempotencyKeys interface {
	Claim(ctx context.Context, userID int64, key string) (claimed bool, bookingID int64, err error)
	Complete(ctx context.Context, userID int64, key string, bookingID int64) error
	Release(ctx context.Context, userID int64, key string) error
}

// StatsReader is satisfied by *redisx.Stats.
type StatsReader interface {
	Get(ctx context.Context, shopID int64) (redisx.ShopStats, error)
}

// Service is safe for concurrent use. Cache, Idem, Events and Stats are
// optional; nil disables the feature.
type Service struct {
	Store  market.Store
	Cache  SearchCache
	Idem   IdempotencyKeys
	Events Publisher
	Stats  StatsReader

	ServiceName   string
	BookingTTL    time.Duration
	Origin        market.Point
	MaxDistanceKm float64
	Now           func() time.Time
}

func NewService(store market.Store) *Service {
	return &Service{
		Store:         store,
		ServiceName:   "market-api",
		BookingTTL:    2 * time.Hour,
		Origin:        market.DefaultOrigin,
		MaxDistanceKm: market.DefaultMaxDistanceKm,
		Now:           time.Now,
	}
}

// Search returns in-stock products matching q within the radius, nearest
// first. Cache errors are logged and the store is queried directly.
func (s *Service) Search(ctx context.Context, q market.SearchQuery) ([]market.ProductWithShop, error) {
	q, err := q.Normalize(s.Origin, s.MaxDistanceKm)
	if err != nil {
		return nil, err
	}
	// The key is taken before the store is read, so a write that lands in
	// between moves readers to a new generation.
	var key string
	if s.Cache != nil {
		k, err := s.Cache.Key(ctx, q)
		if err != nil {
			log.Printf("search cache key: %v", err)
		} else if res, ok, err := s.Cache.Get(ctx, k); err != nil {
			log.Printf("search cache get: %v", err)
		} else if ok {
			return res, nil
		} else {
			key = k
		}
	}

	candidates, err := s.Store.MatchProducts(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	res := market.Rank(candidates, *q.Origin, *q.MaxDistanceKm)

	if key != "" {
		if err := s.Cache.Set(ctx, key, res); err != nil {
			log.Printf("search cache set: %v", err)
		}
	}
	return res, nil
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Printf("search cache invalidate: %v", err)
	}
}

// shopResource resolves the owner of shopID. A missing shop yields the zero
// Resource, which every ownership check denies.
func (s *Service) shopResource(ctx context.Context, shopID int64) (auth.Resource, error) {
	sh, err := s.Store.GetShop(ctx, shopID)
	if errors.Is(err, market.ErrNotFound) {
		return auth.Resource{}, nil
	}
	if err != nil {
		return auth.Resource{}, err
	}
	return auth.Resource{OwnerID: sh.OwnerID}, nil
}

func (s *Service) authorizeShop(ctx context.Context, actor auth.Principal, shopID int64) error {
	r, err := s.shopResource(ctx, shopID)
	if err != nil {
		return err
	}
	return auth.Authorize(actor, auth.ManageShop, r)
}

// ---- products ----

func (s *Service) ProductsByShop(ctx context.Context, shopID int64) ([]market.Product, error) {
	return s.Store.ProductsByShop(ctx, shopID)
}

func (s *Service) CreateProduct(ctx context.Context, actor auth.Principal, in market.NewProduct) (market.Product, error) {
	if err := in.Validate(); err != nil {
		return market.Product{}, err
	}
	if err := s.authorizeShop(ctx, actor, in.ShopID); err != nil {
		return market.Product{}, err
	}
	p, err := s.Store.CreateProduct(ctx, in)
	if err != nil {
		return market.Product{}, err
	}
	s.invalidateSearch(ctx)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, actor auth.Principal, id int64, u market.ProductUpdate) (market.Product, error) {
	if err := u.Validate(); err != nil {
		return market.Product{}, err
	}
	cur, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return market.Product{}, err
	}
	if err := s.authorizeShop(ctx, actor, cur.ShopID); err != nil {
		return market.Product{}, err
	}
	if u.Empty() {
		return cur, nil
	}
	p, err := s.Store.UpdateProduct(ctx, id, u)
	if err != nil {
		return market.Product{}, err
	}
	s.invalidateSearch(ctx)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, actor auth.Principal, id int64) error {
	cur, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeShop(ctx, actor, cur.ShopID); err != nil {
		return err
	}
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	return nil
}

// ---- shops ----

func (s *Service) ShopsByOwner(ctx context.Context, actor auth.Principal, ownerID int64) ([]market.Shop, error) {
	if err := auth.Authorize(actor, auth.ViewOwnedShops, auth.Resource{OwnerID: ownerID}); err != nil {
		return nil, err
	}
	return s.Store.ShopsByOwner(ctx, ownerID)
}

func (s *Service) CreateShop(ctx context.Context, actor auth.Principal, in market.NewShop) (market.Shop, error) {
	if err := auth.Authorize(actor, auth.OpenShop, auth.Resource{}); err != nil {
		return market.Shop{}, err
	}
	if err := in.Validate(); err != nil {
		return market.Shop{}, err
	}
	in.OwnerID = actor.ID
	return s.Store.CreateShop(ctx, in)
}

// ShopStats returns the booking counters kept by the worker. Without a stats
// backend every counter reads zero.
func (s *Service) ShopStats(ctx context.Context, actor auth.Principal, shopID int64) (redisx.ShopStats, error) {
	if err := s.authorizeShop(ctx, actor, shopID); err != nil {
		return redisx.ShopStats{}, err
	}
	if s.Stats == nil {
		return redisx.ShopStats{}, nil
	}
	return s.Stats.Get(ctx, shopID)
}
