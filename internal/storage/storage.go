// Package storage opens the market.Store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/config"
	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/memstore"
	"github.com/ariefcatur/go-local-market/internal/postgres"
)

// Open returns the configured store and a func that releases it. The memory
// store starts with the fixtures; Postgres is migrated and seeded when empty.
// With SeedOwnerPassword set, the fixture shops are seeded together with their
// owner accounts; otherwise they have no owner.
func Open(ctx context.Context, cfg config.Config) (market.Store, func(), error) {
	var owners []market.NewUser
	if cfg.SeedOwnerPassword != "" {
		var err error
		if owners, err = auth.FixtureOwners(cfg.SeedOwnerPassword, 0); err != nil {
			return nil, nil, err
		}
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memstore.NewSeeded(owners...), func() {}, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		seeded, err := postgres.Seed(ctx, db, owners)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if seeded {
			log.Printf("postgres: seeded fixture shops and products")
		}
		return &postgres.Store{DB: db}, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
