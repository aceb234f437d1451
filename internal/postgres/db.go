package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-local-market/internal/market"
)

//go:embed schema.sql
var schema string

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Seed inserts the fixture shops and products when the shops table is empty.
// owners are created in the same transaction and take the shops in order. A
// shop whose owner username is already registered, or that has no owner
// listed, is left without one. It reports whether anything was inserted.
func Seed(ctx context.Context, db *pgxpool.Pool, owners []market.NewUser) (bool, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// serialize concurrent seeders
	if _, err := tx.Exec(ctx, `LOCK TABLE shops IN EXCLUSIVE MODE`); err != nil {
		return false, err
	}
	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM shops`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	ids := make([]int64, 0, 3)
	for i, s := range market.FixtureShops() {
		if i < len(owners) {
			ownerID, err := seedOwner(ctx, tx, owners[i])
			if err != nil {
				return false, err
			}
			s.OwnerID = ownerID
		}
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO shops (name, owner_id, address, latitude, longitude, rating, total_ratings)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			s.Name, s.OwnerID, s.Address, s.Latitude, s.Longitude, s.Rating, s.TotalRatings,
		).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("seed shop %s: %w", s.Name, err)
		}
		ids = append(ids, id)
	}
	for _, p := range market.FixtureProducts() {
		// fixture products point at shops by position
		p.ShopID = ids[p.ShopID-1]
		if _, err := insertProduct(ctx, tx, p); err != nil {
			return false, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// seedOwner returns 0 when the username is already taken, so an existing
// account never inherits a fixture shop.
func seedOwner(ctx context.Context, tx pgx.Tx, u market.NewUser) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO users (username, password, role, email)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (username) DO NOTHING
		RETURNING id`,
		u.Username, u.Password, string(u.Role), u.Email,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Printf("postgres: seed owner %s exists, shop left without owner", u.Username)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("seed owner %s: %w", u.Username, err)
	}
	return id, nil
}
