package cart

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

// Snapshot harga/nama saat reservasi. Tidak berubah walau harga produk berubah.
type Snapshot struct {
	ProductID     string
	VariantID     string
	Size          string
	ProductName   string
	UnitPrice     decimal.Decimal
	Quantity      int
	ReservationID string
	SnapshotAt    time.Time
}

type Item struct {
	ID     string
	CartID string
	Snapshot
}

// ActiveCartID mengembalikan cart ACTIVE milik user, membuat baru kalau belum ada.
func ActiveCartID(ctx context.Context, db postgres.Runner, userID string) (string, error) {
	if _, err := db.Exec(ctx, `
		INSERT INTO carts (id, user_id, status)
		VALUES ($1, $2, 'ACTIVE')
		ON CONFLICT (user_id) WHERE status = 'ACTIVE' DO NOTHING`,
		uuid.NewString(), userID); err != nil {
		return "", fmt.Errorf("ensure cart: %w", err)
	}
	var id string
	if err := db.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 AND status = 'ACTIVE'`, userID).Scan(&id); err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	return id, nil
}

// Upsert menambah item ke cart aktif. Varian/size yang sama di-merge quantity-nya;
// snapshot harga pertama dipertahankan, reservation_id ikut yang terbaru.
func Upsert(ctx context.Context, db postgres.Runner, userID string, s Snapshot) (*Item, error) {
	if s.ProductID == "" || s.Quantity <= 0 {
		return nil, fmt.Errorf("%w: product and positive quantity required", ErrInvalidSnapshot)
	}
	cartID, err := ActiveCartID(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	it := &Item{CartID: cartID, Snapshot: s}
	var price string
	err = db.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, size, product_name, unit_price, quantity, reservation_id, snapshot_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (cart_id, product_id, variant_id, size) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    reservation_id = EXCLUDED.reservation_id
		RETURNING id, quantity, unit_price::text, product_name, snapshot_at`,
		uuid.NewString(), cartID, s.ProductID, s.VariantID, s.Size, s.ProductName,
		s.UnitPrice.Round(2).StringFixed(2), s.Quantity, s.ReservationID, s.SnapshotAt,
	).Scan(&it.ID, &it.Quantity, &price, &it.ProductName, &it.SnapshotAt)
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", err)
	}
	if it.UnitPrice, err = postgres.Decimal(price); err != nil {
		return nil, err
	}
	return it, nil
}

func Items(ctx context.Context, db postgres.Runner, userID string) ([]Item, error) {
	rows, err := db.Query(ctx, `
		SELECT i.id, i.cart_id, i.product_id, i.variant_id, i.size, i.product_name,
		       i.unit_price::text, i.quantity, COALESCE(i.reservation_id, ''), i.snapshot_at
		FROM cart_items i
		JOIN carts c ON c.id = i.cart_id
		WHERE c.user_id = $1 AND c.status = 'ACTIVE'
		ORDER BY i.snapshot_at, i.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Size, &it.ProductName,
			&price, &it.Quantity, &it.ReservationID, &it.SnapshotAt); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = postgres.Decimal(price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
