package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/config"
	"github.com/ariefcatur/go-local-market/internal/httpx"
	"github.com/ariefcatur/go-local-market/internal/inventory"
	kafkax "github.com/ariefcatur/go-local-market/internal/kafka"
	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/redisx"
	"github.com/ariefcatur/go-local-market/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	svc := inventory.NewService(store)
	svc.ServiceName = cfg.ServiceName
	svc.BookingTTL = cfg.BookingTTL
	svc.Origin = market.Point{Lat: cfg.SearchOriginLat, Lng: cfg.SearchOriginLng}
	svc.MaxDistanceKm = cfg.SearchMaxDistanceKm

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := &auth.Service{Users: store, Tokens: tokens}
	h := &httpx.Handler{Market: svc, Auth: authSvc, Tokens: tokens}

	// Redis (optional)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis ping %s: %v (cache and limits will retry per request)", cfg.RedisAddr, err)
		}
		svc.Cache = redisx.NewSearchCache(rdb, cfg.SearchCacheTTL)
		svc.Idem = redisx.NewIdempotency(rdb)
		svc.Stats = redisx.NewStats(rdb)
		if cfg.AuthRateLimit > 0 {
			h.Limiter = redisx.NewRateLimiter(rdb, cfg.AuthRateLimit, time.Minute)
		}
	}

	// Kafka producer (optional)
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start()
		svc.Events = prod
	}

	// The worker cannot see an in-memory store, so the API sweeps it itself.
	var wg sync.WaitGroup
	if cfg.StoreDriver == config.DriverMemory && cfg.BookingSweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RunExpirySweeper(ctx, cfg.BookingSweepInterval)
		}()
	}

	router := httpx.NewRouter(cfg.TrustProxy)
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	wg.Wait() // sweeper may still publish
	if prod != nil {
		prod.Close()      // no more publishes after Shutdown
		prod.WaitClosed() // flush
	}
}
