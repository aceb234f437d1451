package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-local-market/internal/config"
	"github.com/ariefcatur/go-local-market/internal/inventory"
	kafkax "github.com/ariefcatur/go-local-market/internal/kafka"
	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/redisx"
	"github.com/ariefcatur/go-local-market/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis (optional)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	// Producer for expiry events
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start()
	}

	var wg sync.WaitGroup

	// Expiry sweeper. An in-memory store lives in the API process, which
	// sweeps it there.
	if cfg.StoreDriver == config.DriverPostgres && cfg.BookingSweepInterval > 0 {
		store, closeStore, err := storage.Open(ctx, cfg)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer closeStore()

		svc := inventory.NewService(store)
		svc.ServiceName = cfg.ServiceName + "-worker"
		if prod != nil {
			svc.Events = prod
		}
		if rdb != nil {
			svc.Cache = redisx.NewSearchCache(rdb, cfg.SearchCacheTTL)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("expiry sweeper started: interval=%s", cfg.BookingSweepInterval)
			svc.RunExpirySweeper(ctx, cfg.BookingSweepInterval)
		}()
	} else {
		log.Printf("expiry sweeper disabled: store=%s interval=%s", cfg.StoreDriver, cfg.BookingSweepInterval)
	}

	// Consumer: booking events -> per-shop stats
	if prod != nil && rdb != nil {
		proj := &inventory.StatsProjector{
			Stats: redisx.NewStats(rdb),
			Dedup: redisx.NewDedup(rdb, "shop-stats"),
		}
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, market.BookingTopics, cfg.WorkerCount)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("stats consumer started: group=%s topics=%v workers=%d", cfg.WorkerGroup, market.BookingTopics, cfg.WorkerCount)
			if err := cons.Start(ctx, proj.HandleBookingEvent); err != nil {
				log.Printf("consumer exit: %v", err)
				cancel()
			}
		}()
	} else {
		log.Printf("stats consumer disabled: needs KAFKA_BROKERS and REDIS_ADDR")
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down worker...")
	cancel()
	wg.Wait()
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
