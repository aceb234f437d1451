package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-local-market/internal/market"
)

// Store is the pgx-backed market.Store. Stock changes run in a transaction
// that holds the product row with SELECT ... FOR UPDATE.
type Store struct{ DB *pgxpool.Pool }

var _ market.Store = (*Store)(nil)

const uniqueViolation = "23505"

const productCols = `p.id, p.name, COALESCE(p.brand, ''), p.price::text, p.stock, p.category, p.expiry_date, p.shop_id`
const shopCols = `s.id, s.name, s.owner_id, s.address, s.latitude, s.longitude, s.rating, s.total_ratings`
const bookingCols = `b.id, b.user_id, b.product_id, b.quantity, b.status, b.booked_at, b.expires_at`

const bookingDetailsQuery = `
	SELECT ` + bookingCols + `, ` + productCols + `, ` + shopCols + `,
	       u.id, u.username, u.role, COALESCE(u.email, '')
	FROM bookings b
	JOIN products p ON p.id = b.product_id
	JOIN shops s ON s.id = p.shop_id
	JOIN users u ON u.id = b.user_id`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ---- scanning ----

type productRow struct {
	p     market.Product
	price string
}

func (r *productRow) dest() []any {
	return []any{&r.p.ID, &r.p.Name, &r.p.Brand, &r.price, &r.p.Stock, &r.p.Category, &r.p.ExpiryDate, &r.p.ShopID}
}

func (r *productRow) product() (market.Product, error) {
	d, err := decimal.NewFromString(r.price)
	if err != nil {
		return market.Product{}, fmt.Errorf("product %d price %q: %w", r.p.ID, r.price, err)
	}
	r.p.Price = d
	return r.p, nil
}

func shopDest(s *market.Shop) []any {
	return []any{&s.ID, &s.Name, &s.OwnerID, &s.Address, &s.Latitude, &s.Longitude, &s.Rating, &s.TotalRatings}
}

func bookingDest(b *market.Booking) []any {
	return []any{&b.ID, &b.UserID, &b.ProductID, &b.Quantity, &b.Status, &b.BookedAt, &b.ExpiresAt}
}

func scanDetails(row pgx.Row) (market.BookingWithDetails, error) {
	var d market.BookingWithDetails
	var pr productRow
	dest := bookingDest(&d.Booking)
	dest = append(dest, pr.dest()...)
	dest = append(dest, shopDest(&d.Shop)...)
	dest = append(dest, &d.User.ID, &d.User.Username, &d.User.Role, &d.User.Email)
	if err := row.Scan(dest...); err != nil {
		return d, err
	}
	p, err := pr.product()
	if err != nil {
		return d, err
	}
	d.Product = p
	return d, nil
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, market.ErrNotFound)
	}
	return err
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id int64) (market.User, error) {
	var u market.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, password, role, COALESCE(email, '') FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Email)
	if err != nil {
		return market.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (market.User, error) {
	var u market.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, password, role, COALESCE(email, '') FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Email)
	if err != nil {
		return market.User{}, notFound(err, "user", fmt.Sprintf("%q", username))
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, in market.NewUser) (market.User, error) {
	u := market.User{Username: in.Username, Password: in.Password, Role: in.Role, Email: in.Email}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users (username, password, role, email)
		VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id`,
		in.Username, in.Password, string(in.Role), in.Email,
	).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return market.User{}, fmt.Errorf("username %q already exists: %w", in.Username, market.ErrConflict)
		}
		return market.User{}, err
	}
	return u, nil
}

// ---- shops ----

func (s *Store) GetShop(ctx context.Context, id int64) (market.Shop, error) {
	var sh market.Shop
	err := s.DB.QueryRow(ctx, `SELECT `+shopCols+` FROM shops s WHERE s.id = $1`, id).Scan(shopDest(&sh)...)
	if err != nil {
		return market.Shop{}, notFound(err, "shop", id)
	}
	return sh, nil
}

func (s *Store) ShopsByOwner(ctx context.Context, ownerID int64) ([]market.Shop, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+shopCols+` FROM shops s WHERE s.owner_id = $1 ORDER BY s.id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []market.Shop{}
	for rows.Next() {
		var sh market.Shop
		if err := rows.Scan(shopDest(&sh)...); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *Store) CreateShop(ctx context.Context, in market.NewShop) (market.Shop, error) {
	sh := market.Shop{
		Name:      strings.TrimSpace(in.Name),
		OwnerID:   in.OwnerID,
		Address:   strings.TrimSpace(in.Address),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO shops (name, owner_id, address, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sh.Name, sh.OwnerID, sh.Address, sh.Latitude, sh.Longitude,
	).Scan(&sh.ID)
	if err != nil {
		return market.Shop{}, err
	}
	return sh, nil
}

// ---- products ----

func (s *Store) GetProduct(ctx context.Context, id int64) (market.Product, error) {
	return getProduct(ctx, s.DB, id, "")
}

func getProduct(ctx context.Context, q querier, id int64, suffix string) (market.Product, error) {
	var pr productRow
	err := q.QueryRow(ctx, `SELECT `+productCols+` FROM products p WHERE p.id = $1`+suffix, id).Scan(pr.dest()...)
	if err != nil {
		return market.Product{}, notFound(err, "product", id)
	}
	return pr.product()
}

func (s *Store) ProductsByShop(ctx context.Context, shopID int64) ([]market.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productCols+` FROM products p WHERE p.shop_id = $1 ORDER BY p.id`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []market.Product{}
	for rows.Next() {
		var pr productRow
		if err := rows.Scan(pr.dest()...); err != nil {
			return nil, err
		}
		p, err := pr.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) MatchProducts(ctx context.Context, text string) ([]market.ProductWithShop, error) {
	pattern := "%" + likeEscaper.Replace(text) + "%"
	rows, err := s.DB.Query(ctx, `
		SELECT `+productCols+`, `+shopCols+`
		FROM products p
		JOIN shops s ON s.id = p.shop_id
		WHERE p.stock > 0
		  AND (p.name ILIKE $1 OR p.brand ILIKE $1 OR p.category ILIKE $1)`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.ProductWithShop
	for rows.Next() {
		var pr productRow
		var hit market.ProductWithShop
		if err := rows.Scan(append(pr.dest(), shopDest(&hit.Shop)...)...); err != nil {
			return nil, err
		}
		p, err := pr.product()
		if err != nil {
			return nil, err
		}
		hit.Product = p
		out = append(out, hit)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, in market.NewProduct) (market.Product, error) {
	return insertProduct(ctx, s.DB, in)
}

func insertProduct(ctx context.Context, q querier, in market.NewProduct) (market.Product, error) {
	p := market.Product{
		Name:       strings.TrimSpace(in.Name),
		Brand:      in.Brand,
		Price:      in.Price.Round(2),
		Stock:      in.Stock,
		Category:   strings.TrimSpace(in.Category),
		ExpiryDate: in.ExpiryDate,
		ShopID:     in.ShopID,
	}
	err := q.QueryRow(ctx, `
		INSERT INTO products (name, brand, price, stock, category, expiry_date, shop_id)
		VALUES ($1, NULLIF($2, ''), $3::text::numeric, $4, $5, $6, $7) RETURNING id`,
		p.Name, p.Brand, p.Price.StringFixed(2), p.Stock, p.Category, p.ExpiryDate, p.ShopID,
	).Scan(&p.ID)
	if err != nil {
		return market.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, u market.ProductUpdate) (market.Product, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := getProduct(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return market.Product{}, err
	}
	p = u.Apply(p)
	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET name = $2, brand = NULLIF($3, ''), price = $4::text::numeric, stock = $5, category = $6, expiry_date = $7
		WHERE id = $1`,
		p.ID, p.Name, p.Brand, p.Price.StringFixed(2), p.Stock, p.Category, p.ExpiryDate,
	); err != nil {
		return market.Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return market.Product{}, err
	}
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	return nil
}

// ---- bookings ----

func (s *Store) GetBooking(ctx context.Context, id int64) (market.BookingWithDetails, error) {
	d, err := scanDetails(s.DB.QueryRow(ctx, bookingDetailsQuery+` WHERE b.id = $1`, id))
	if err != nil {
		return market.BookingWithDetails{}, notFound(err, "booking", id)
	}
	return d, nil
}

func (s *Store) BookingsByUser(ctx context.Context, userID int64) ([]market.BookingWithDetails, error) {
	return s.listDetails(ctx, bookingDetailsQuery+` WHERE b.user_id = $1 ORDER BY b.id`, userID)
}

func (s *Store) BookingsByShop(ctx context.Context, shopID int64) ([]market.BookingWithDetails, error) {
	return s.listDetails(ctx, bookingDetailsQuery+` WHERE s.id = $1 ORDER BY b.id`, shopID)
}

func (s *Store) listDetails(ctx context.Context, sql string, arg int64) ([]market.BookingWithDetails, error) {
	rows, err := s.DB.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []market.BookingWithDetails{}
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateBooking locks the product row, checks and decrements stock, and
// inserts the booking. Any failure rolls the whole step back.
func (s *Store) CreateBooking(ctx context.Context, in market.NewBooking) (market.Booking, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, in.ProductID).Scan(&stock); err != nil {
		return market.Booking{}, notFound(err, "product", in.ProductID)
	}
	if stock < in.Quantity {
		return market.Booking{}, fmt.Errorf("product %d has %d, need %d: %w",
			in.ProductID, stock, in.Quantity, market.ErrInsufficientStock)
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1`, in.ProductID, in.Quantity); err != nil {
		return market.Booking{}, err
	}

	b := market.Booking{
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Status:    market.StatusPending,
		BookedAt:  in.BookedAt,
		ExpiresAt: in.ExpiresAt,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (user_id, product_id, quantity, status, booked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		b.UserID, b.ProductID, b.Quantity, string(b.Status), b.BookedAt, b.ExpiresAt,
	).Scan(&b.ID)
	if err != nil {
		return market.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return market.Booking{}, err
	}
	return b, nil
}

func (s *Store) SetBookingStatus(ctx context.Context, id int64, from, to market.BookingStatus) (market.Booking, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b market.Booking
	err = tx.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, id).Scan(bookingDest(&b)...)
	if err != nil {
		return market.Booking{}, notFound(err, "booking", id)
	}
	if b.Status != from || !market.CanTransition(from, to) {
		return market.Booking{}, fmt.Errorf("booking %d is %s, cannot move to %s: %w",
			id, b.Status, to, market.ErrInvalidTransition)
	}
	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, string(to)); err != nil {
		return market.Booking{}, err
	}
	b.Status = to
	if to.Releases() {
		if err := restock(ctx, tx, map[int64]int{b.ProductID: b.Quantity}); err != nil {
			return market.Booking{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return market.Booking{}, err
	}
	return b, nil
}

func (s *Store) ExpirePending(ctx context.Context, now time.Time) ([]market.Booking, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE bookings b SET status = 'cancelled'
		WHERE b.status = 'pending' AND b.expires_at <= $1
		RETURNING `+bookingCols, now)
	if err != nil {
		return nil, err
	}
	var out []market.Booking
	units := map[int64]int{}
	for rows.Next() {
		var b market.Booking
		if err := rows.Scan(bookingDest(&b)...); err != nil {
			rows.Close()
			return nil, err
		}
		units[b.ProductID] += b.Quantity
		out = append(out, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := restock(ctx, tx, units); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// restock returns units to their products in id order. Deleted products match
// no row and are skipped.
func restock(ctx context.Context, tx pgx.Tx, units map[int64]int) error {
	ids := make([]int64, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, id, units[id]); err != nil {
			return fmt.Errorf("restock product %d: %w", id, err)
		}
	}
	return nil
}
