package payout

import (
	"context"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
	"github.com/shopspring/decimal"
	"time"
)

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// LockSellerBalance ambil advisory lock ledger seller lalu hitung saldo tersedia.
	LockSellerBalance(ctx context.Context, sellerID string) (decimal.Decimal, error)
	InsertPayout(ctx context.Context, p *Payout) error
	InsertPayoutDebit(ctx context.Context, p *Payout) (ledger.InsertResult, error)
	SettleCredits(ctx context.Context, sellerID, payoutID string, at time.Time) (int64, error)
	InsertPlatformMargin(ctx context.Context, p *Payout, amount decimal.Decimal) error
	InsertEvent(ctx context.Context, e Event) error
	LockPayout(ctx context.Context, id string) (*Payout, error)
	UpdateStatus(ctx context.Context, id string, status Status, paidAt *time.Time) error
}
