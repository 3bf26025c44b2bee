package inventory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"time"
)

type PGStore struct{ DB postgres.DB }

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *PGStore) ProductSeller(ctx context.Context, productID string) (string, error) {
	var sellerID string
	err := s.DB.QueryRow(ctx, `SELECT seller_id FROM products WHERE id = $1`, productID).Scan(&sellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	return sellerID, err
}

func (s *PGStore) ProductPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price string
	err := s.DB.QueryRow(ctx, `SELECT price::text FROM products WHERE id = $1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return postgres.Decimal(price)
}

func (s *PGStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	return scanReservation(s.DB.QueryRow(ctx, `
		SELECT id, product_id, user_id, quantity, status, expires_at, created_at
		FROM reservations WHERE id = $1`, id))
}

func (s *PGStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o := &Order{ID: orderID}
	err := s.DB.QueryRow(ctx, `SELECT user_id FROM orders WHERE id = $1`, orderID).Scan(&o.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, seller_id, quantity, line_total::text
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     OrderLine
			total string
		)
		if err := rows.Scan(&l.ProductID, &l.SellerID, &l.Quantity, &total); err != nil {
			return nil, err
		}
		if l.LineTotal, err = postgres.Decimal(total); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (s *PGStore) ExpireReservations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE reservations SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeactivateSellerProducts hanya menyentuh listing LIVE; OUT_OF_STOCK tetap
// OUT_OF_STOCK supaya status stok tidak hilang saat seller diaktifkan lagi.
func (s *PGStore) DeactivateSellerProducts(ctx context.Context, sellerID string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE products SET status = 'INACTIVE', updated_at = now()
		WHERE seller_id = $1 AND status = 'LIVE'`, sellerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, productID string) (*Product, error) {
	var (
		p      Product
		price  string
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, seller_id, name, price::text, quantity, status
		FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &price, &p.Quantity, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = postgres.Decimal(price); err != nil {
		return nil, err
	}
	p.Status = ProductStatus(status)
	return &p, nil
}

func (t *pgTx) ReservedQuantity(ctx context.Context, productID string, now time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations
		WHERE product_id = $1 AND status = 'ACTIVE' AND expires_at > $2`, productID, now).Scan(&n)
	return n, err
}

func (t *pgTx) InsertReservation(ctx context.Context, r *Reservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (id, product_id, user_id, quantity, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ProductID, r.UserID, r.Quantity, string(r.Status), r.ExpiresAt, r.CreatedAt)
	return err
}

func (t *pgTx) LockReservation(ctx context.Context, id string) (*Reservation, error) {
	return scanReservation(t.tx.QueryRow(ctx, `
		SELECT id, product_id, user_id, quantity, status, expires_at, created_at
		FROM reservations WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockLiveReservations(ctx context.Context, productID, userID string, now time.Time) ([]Reservation, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, product_id, user_id, quantity, status, expires_at, created_at
		FROM reservations
		WHERE product_id = $1 AND user_id = $2 AND status = 'ACTIVE' AND expires_at > $3
		ORDER BY created_at, id
		FOR UPDATE`, productID, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (t *pgTx) MarkConverted(ctx context.Context, ids []string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE reservations SET status = 'CONVERTED'
		WHERE id = ANY($1) AND status = 'ACTIVE'`, ids)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: converted %d of %d reservations", ErrExpired, tag.RowsAffected(), len(ids))
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, productID, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %s", ErrOutOfStock, productID)
	}
	return left, err
}

func (t *pgTx) SetProductStatus(ctx context.Context, productID string, status ProductStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE products SET status = $2, updated_at = now() WHERE id = $1`, productID, string(status))
	return err
}

func (t *pgTx) VariantPrice(ctx context.Context, productID, variantID string) (decimal.Decimal, error) {
	var price string
	err := t.tx.QueryRow(ctx, `
		SELECT price::text FROM product_variants
		WHERE id = $1 AND product_id = $2`, variantID, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: variant %s of product %s", ErrNotFound, variantID, productID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return postgres.Decimal(price)
}

func (t *pgTx) SnapshotCartItem(ctx context.Context, userID string, s cart.Snapshot) (*cart.Item, error) {
	return cart.Upsert(ctx, t.tx, userID, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var (
		r      Reservation
		status string
	)
	err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Quantity, &status, &r.ExpiresAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = ReservationStatus(status)
	return &r, nil
}
