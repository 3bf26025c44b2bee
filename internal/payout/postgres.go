package payout

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"time"
)

type PGStore struct{ DB postgres.TxBeginner }

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockSellerBalance(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	if err := ledger.LockSeller(ctx, t.tx, sellerID); err != nil {
		return decimal.Zero, err
	}
	return ledger.AvailableBalance(ctx, t.tx, sellerID)
}

func (t *pgTx) InsertPayout(ctx context.Context, p *Payout) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO seller_payouts (id, seller_id, amount, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.SellerID, p.Amount.StringFixed(2), string(p.Status), p.CreatedBy, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// InsertPayoutDebit: DEBIT ber-order_id payout id, langsung settled supaya tidak ikut saldo berikutnya.
func (t *pgTx) InsertPayoutDebit(ctx context.Context, p *Payout) (ledger.InsertResult, error) {
	payoutID := p.ID
	settledAt := p.CreatedAt
	return ledger.InsertIdempotent(ctx, t.tx, ledger.Entry{
		SellerID:  p.SellerID,
		OrderID:   p.ID,
		Amount:    p.Amount,
		Type:      ledger.Debit,
		Reason:    ledger.ReasonPayout,
		SettledAt: &settledAt,
		PayoutID:  &payoutID,
	})
}

func (t *pgTx) SettleCredits(ctx context.Context, sellerID, payoutID string, at time.Time) (int64, error) {
	return ledger.MarkSettledForPayout(ctx, t.tx, sellerID, payoutID, at)
}

func (t *pgTx) InsertPlatformMargin(ctx context.Context, p *Payout, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO platform_ledger (id, seller_id, payout_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, 'payout_margin', $5)`,
		uuid.NewString(), p.SellerID, p.ID, ledger.Normalize(amount).StringFixed(2), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert platform margin: %w", err)
	}
	return nil
}

func (t *pgTx) InsertEvent(ctx context.Context, e Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payout_events (id, payout_id, from_status, to_status, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PayoutID, string(e.From), string(e.To), e.ChangedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payout event: %w", err)
	}
	return nil
}

func (t *pgTx) LockPayout(ctx context.Context, id string) (*Payout, error) {
	var (
		p      Payout
		amount string
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, seller_id, amount::text, status, created_by, created_at, paid_at
		FROM seller_payouts WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.SellerID, &amount, &status, &p.CreatedBy, &p.CreatedAt, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if p.Amount, err = postgres.Decimal(amount); err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}

func (t *pgTx) UpdateStatus(ctx context.Context, id string, status Status, paidAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE seller_payouts SET status = $2, paid_at = COALESCE(paid_at, $3)
		WHERE id = $1`, id, string(status), paidAt)
	return err
}
