package redisx

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-local-market/internal/market"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func normalized(t *testing.T, text string) market.SearchQuery {
	q, err := market.SearchQuery{Text: text}.Normalize(market.DefaultOrigin, market.DefaultMaxDistanceKm)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return q
}

func TestSearchCache_SetGetInvalidate(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewSearchCache(client, time.Minute)
	q := normalized(t, fmt.Sprintf("milk-%d", time.Now().UnixNano()))

	key, err := cache.Key(ctx, q)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	res := []market.ProductWithShop{{Product: market.Product{ID: 1, Name: "Fresh Milk", Stock: 8}, Distance: 0.4}}
	if err := cache.Set(ctx, key, res); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].Name != "Fresh Milk" || got[0].Distance != 0.4 {
		t.Errorf("unexpected cached value: %+v", got)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	fresh, err := cache.Key(ctx, q)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if fresh == key {
		t.Fatal("expected a new key after invalidate")
	}
	if _, ok, _ := cache.Get(ctx, fresh); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestSearchCache_SetAfterInvalidateIsUnreachable(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewSearchCache(client, time.Minute)
	q := normalized(t, fmt.Sprintf("milk-%d", time.Now().UnixNano()))

	// key taken before the store read, write lands before the cache fill
	key, err := cache.Key(ctx, q)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	stale := []market.ProductWithShop{{Product: market.Product{ID: 2, Name: "Organic Milk", Stock: 2}}}
	if err := cache.Set(ctx, key, stale); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	next, err := cache.Key(ctx, q)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, next); ok {
		t.Error("stale result visible under the current generation")
	}
}

func TestSearchKey_Distinct(t *testing.T) {
	km := func(v float64) *float64 { return &v }
	base := market.SearchQuery{Text: "milk", Origin: &market.Point{Lat: 28.6139, Lng: 77.2090}, MaxDistanceKm: km(10.1)}

	variants := []market.SearchQuery{
		{Text: "milk", Origin: base.Origin, MaxDistanceKm: km(10.06)},
		{Text: "milk", Origin: &market.Point{Lat: 28.61391, Lng: 77.2090}, MaxDistanceKm: km(10.1)},
		{Text: "milk", Origin: &market.Point{Lat: 28.6139, Lng: 77.20901}, MaxDistanceKm: km(10.1)},
		{Text: "milk:1", Origin: base.Origin, MaxDistanceKm: km(10.1)},
	}
	seen := map[string]bool{searchKey(1, base): true}
	for _, v := range variants {
		k := searchKey(1, v)
		if seen[k] {
			t.Errorf("key collision for %+v: %s", v, k)
		}
		seen[k] = true
	}

	// text containing ':' cannot pose as other fields
	a := market.SearchQuery{Text: "a", Origin: &market.Point{Lat: 1, Lng: 2}, MaxDistanceKm: km(3)}
	b := market.SearchQuery{Text: "3:a", Origin: &market.Point{Lat: 1, Lng: 2}, MaxDistanceKm: km(3)}
	if searchKey(1, a) == searchKey(1, b) {
		t.Error("expected different keys for different text")
	}

	if searchKey(1, base) != searchKey(1, market.SearchQuery{Text: " MILK ", Origin: base.Origin, MaxDistanceKm: km(10.1)}) {
		t.Error("expected case and surrounding space to be ignored")
	}
	if searchKey(1, base) == searchKey(2, base) {
		t.Error("expected generation in key")
	}
}

func TestIdempotency_ClaimCompleteRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	idem := NewIdempotency(client)
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	client.Del(ctx, fmt.Sprintf(KeyIdemBooking, 1, key))

	claimed, _, err := idem.Claim(ctx, 1, key)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got %v %v", claimed, err)
	}

	claimed, id, err := idem.Claim(ctx, 1, key)
	if err != nil || claimed || id != 0 {
		t.Fatalf("expected in-flight duplicate, got claimed=%v id=%d err=%v", claimed, id, err)
	}

	if err := idem.Complete(ctx, 1, key, 77); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	claimed, id, _ = idem.Claim(ctx, 1, key)
	if claimed || id != 77 {
		t.Errorf("expected stored booking 77, got claimed=%v id=%d", claimed, id)
	}

	// keys are per user
	claimed, _, _ = idem.Claim(ctx, 2, key)
	if !claimed {
		t.Error("expected another user to claim the same key")
	}
	idem.Release(ctx, 2, key)

	if err := idem.Release(ctx, 1, key); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	claimed, _, _ = idem.Claim(ctx, 1, key)
	if !claimed {
		t.Error("expected claim after release")
	}
	idem.Release(ctx, 1, key)
}

func TestIdempotency_InFlightExpiresSooner(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	idem := NewIdempotency(client)
	key := fmt.Sprintf("ttl-%d", time.Now().UnixNano())
	rk := fmt.Sprintf(KeyIdemBooking, 1, key)
	defer idem.Release(ctx, 1, key)

	if claimed, _, err := idem.Claim(ctx, 1, key); err != nil || !claimed {
		t.Fatalf("expected claim, got %v %v", claimed, err)
	}
	ttl, err := client.TTL(ctx, rk).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > TTLIdemInFlight {
		t.Errorf("expected in-flight ttl within %v, got %v", TTLIdemInFlight, ttl)
	}

	if err := idem.Complete(ctx, 1, key, 9); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	ttl, _ = client.TTL(ctx, rk).Result()
	if ttl <= TTLIdemInFlight {
		t.Errorf("expected completed key to live %v, got %v", TTLIdempotency, ttl)
	}
}

func TestIdempotency_ConcurrentClaim(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	idem := NewIdempotency(client)
	key := fmt.Sprintf("concurrent-%d", time.Now().UnixNano())
	defer idem.Release(ctx, 1, key)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := idem.Claim(ctx, 1, key)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 claim, got %d", successCount.Load())
	}
}

func TestAllow(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	ip := fmt.Sprintf("10.0.0.%d", time.Now().UnixNano()%250)
	client.Del(ctx, fmt.Sprintf(KeyRateLimit, "test", ip))

	for i := 0; i < 3; i++ {
		ok, err := Allow(ctx, client, "test", ip, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d: expected allowed, got %v %v", i+1, ok, err)
		}
	}
	if ok, _ := Allow(ctx, client, "test", ip, 3, time.Minute); ok {
		t.Error("expected 4th hit to be limited")
	}
	ttl, _ := client.TTL(ctx, fmt.Sprintf(KeyRateLimit, "test", ip)).Result()
	if ttl <= 0 {
		t.Errorf("expected window ttl to be set, got %v", ttl)
	}
}

func TestStats_IncrAndGet(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	stats := NewStats(client)
	shopID := time.Now().UnixNano()
	defer client.Del(ctx, fmt.Sprintf(KeyShopStats, shopID))

	stats.Incr(ctx, shopID, map[string]int64{StatBookings: 1, StatUnitsReserved: 3})
	stats.Incr(ctx, shopID, map[string]int64{StatCancelled: 1, StatUnitsReleased: 3})

	got, err := stats.Get(ctx, shopID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := ShopStats{Bookings: 1, UnitsReserved: 3, Cancelled: 1, UnitsReleased: 3}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSeenBefore(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "test", fmt.Sprint(time.Now().UnixNano()))
	defer client.Del(ctx, key)

	if seen, err := SeenBefore(ctx, client, key, time.Minute); err != nil || seen {
		t.Fatalf("expected first sighting, got %v %v", seen, err)
	}
	if seen, _ := SeenBefore(ctx, client, key, time.Minute); !seen {
		t.Error("expected second sighting to be reported")
	}
}

func TestDedup_Forget(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	d := NewDedup(client, "test")
	id := fmt.Sprint(time.Now().UnixNano())
	defer d.Forget(ctx, id)

	if seen, err := d.SeenBefore(ctx, id); err != nil || seen {
		t.Fatalf("expected first sighting, got %v %v", seen, err)
	}
	if err := d.Forget(ctx, id); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if seen, _ := d.SeenBefore(ctx, id); seen {
		t.Error("expected event to be new again after Forget")
	}
}
