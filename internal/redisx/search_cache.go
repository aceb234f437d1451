package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-local-market/internal/market"
)

// SearchCache stores ranked search results. Entries are keyed by a generation
// counter, so Invalidate only has to bump the counter; old entries age out.
//
// Callers take the key once, before querying the store, and pass it to both
// Get and Set. Results computed while a write bumps the generation are then
// stored under the old generation, which nobody reads any more.
type SearchCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSearchCache(rdb *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{Client: rdb, TTL: ttl}
}

// Key returns the cache key for a normalized query at the current generation.
func (c *SearchCache) Key(ctx context.Context, q market.SearchQuery) (string, error) {
	gen, err := c.Client.Get(ctx, KeySearchGen).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return searchKey(gen, q), nil
}

func searchKey(gen int64, q market.SearchQuery) string {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	return fmt.Sprintf(KeySearch, gen, exact(q.Origin.Lat), exact(q.Origin.Lng), exact(*q.MaxDistanceKm), text)
}

func exact(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func (c *SearchCache) Get(ctx context.Context, key string) ([]market.ProductWithShop, bool, error) {
	b, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []market.ProductWithShop
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached search: %w", err)
	}
	return out, true, nil
}

func (c *SearchCache) Set(ctx context.Context, key string, res []market.ProductWithShop) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, b, c.TTL).Err()
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	return c.Client.Incr(ctx, KeySearchGen).Err()
}
