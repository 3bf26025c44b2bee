package settlement

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidUpdate = errors.New("invalid carrier update")
)

type Order struct {
	ID            string
	PaymentStatus string
	IsRTO         bool
	Status        Status
	EligibleAt    *time.Time
}

func (o Order) Paid() bool { return strings.EqualFold(strings.TrimSpace(o.PaymentStatus), "paid") }

type SellerShare struct {
	SellerID string
	Amount   decimal.Decimal
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// DueOrders: PENDING, eligible_at <= now, masih paid, bukan RTO. Urut eligible_at.
	DueOrders(ctx context.Context, now time.Time, limit int) ([]string, error)
	InHoldEarnings(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

type Tx interface {
	LockOrder(ctx context.Context, orderID string) (*Order, error)
	ShipmentCounts(ctx context.Context, orderID string) (total, delivered int, err error)
	// RecordShipment upsert status shipment dan mengembalikan status yang tersimpan.
	// Status terminal tidak pernah ditimpa; shipment milik order lain -> ErrInvalidUpdate.
	RecordShipment(ctx context.Context, orderID, shipmentID string, status ShipmentStatus) (ShipmentStatus, error)
	MarkPending(ctx context.Context, orderID string, eligibleAt time.Time) error
	MarkEligible(ctx context.Context, orderID string) error
	BlockRTO(ctx context.Context, orderID string) error
	FlagRTO(ctx context.Context, orderID string) error
	SellerShares(ctx context.Context, orderID string) ([]SellerShare, error)
	// CreditSeller mengunci ledger seller lalu insert CREDIT idempotent.
	CreditSeller(ctx context.Context, sellerID, orderID string, amount decimal.Decimal) (ledger.InsertResult, error)
}
