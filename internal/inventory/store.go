package inventory

import (
	"context"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/shopspring/decimal"
	"time"
)

// Store: operasi non-locking + pembuka transaksi.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ProductSeller(ctx context.Context, productID string) (string, error)
	ProductPrice(ctx context.Context, productID string) (decimal.Decimal, error)
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ExpireReservations(ctx context.Context, now time.Time) (int64, error)
	DeactivateSellerProducts(ctx context.Context, sellerID string) (int64, error)
}

// Tx: semua Lock* memakai row lock sampai commit/rollback.
// Urutan lock wajib: product -> reservation.
type Tx interface {
	LockProduct(ctx context.Context, productID string) (*Product, error)
	ReservedQuantity(ctx context.Context, productID string, now time.Time) (int, error)
	InsertReservation(ctx context.Context, r *Reservation) error
	LockReservation(ctx context.Context, id string) (*Reservation, error)
	LockLiveReservations(ctx context.Context, productID, userID string, now time.Time) ([]Reservation, error)
	MarkConverted(ctx context.Context, ids []string) error
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
	SetProductStatus(ctx context.Context, productID string, status ProductStatus) error
	VariantPrice(ctx context.Context, productID, variantID string) (decimal.Decimal, error)
	SnapshotCartItem(ctx context.Context, userID string, s cart.Snapshot) (*cart.Item, error)
}

// Admission dicek sebelum transaksi dibuka (boleh baca cache/DB lain).
type Admission interface {
	AdmitReservation(ctx context.Context, sellerID string) error
	AdmitOrder(ctx context.Context, sellerID, orderID string, value decimal.Decimal) error
}

// Notifier dipanggil setelah commit. Implementasi tidak boleh block dan
// harus log error sendiri; kegagalan notifikasi tidak pernah membatalkan mutasi stok.
type Notifier interface {
	LowStock(ctx context.Context, a LowStockAlert)
}
