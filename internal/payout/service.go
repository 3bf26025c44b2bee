package payout

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"time"
)

type Service struct {
	Store   Store
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateBatch membayar seller sebesar amount dari saldo tersedia.
// Seluruh CREDIT yang belum settled ikut ditutup oleh payout ini; selisih saldo
// dengan amount dicatat sebagai margin platform.
func (s *Service) CreateBatch(ctx context.Context, sellerID string, amount decimal.Decimal, createdBy string) (*BatchResult, error) {
	res, err := s.createBatch(ctx, sellerID, amount, createdBy)
	s.Metrics.Payouts.WithLabelValues(metrics.Result(err)).Inc()
	return res, err
}

func (s *Service) createBatch(ctx context.Context, sellerID string, amount decimal.Decimal, createdBy string) (*BatchResult, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := s.now()
	var res *BatchResult
	err := s.Store.InTx(ctx, func(tx Tx) error {
		available, err := tx.LockSellerBalance(ctx, sellerID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return &InsufficientBalanceError{Requested: amount, Available: available}
		}

		p := &Payout{
			ID:        uuid.NewString(),
			SellerID:  sellerID,
			Amount:    amount,
			Status:    StatusPending,
			CreatedBy: createdBy,
			CreatedAt: now,
		}
		if err := tx.InsertPayout(ctx, p); err != nil {
			return err
		}
		if _, err := tx.InsertPayoutDebit(ctx, p); err != nil {
			return err
		}
		settled, err := tx.SettleCredits(ctx, sellerID, p.ID, now)
		if err != nil {
			return err
		}
		margin := available.Sub(amount)
		if margin.IsPositive() {
			if err := tx.InsertPlatformMargin(ctx, p, margin); err != nil {
				return err
			}
		}
		if err := tx.InsertEvent(ctx, Event{
			ID: uuid.NewString(), PayoutID: p.ID,
			From: StatusPending, To: StatusPending,
			ChangedBy: createdBy, CreatedAt: now,
		}); err != nil {
			return err
		}

		res = &BatchResult{Payout: p, Available: available, PlatformMargin: margin, SettledCredits: settled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("payout batch created",
		zap.String("payout_id", res.Payout.ID),
		zap.String("seller_id", sellerID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("margin", res.PlatformMargin.StringFixed(2)),
		zap.Int64("settled_credits", res.SettledCredits))
	return res, nil
}

// UpdateStatus: PENDING -> PROCESSING -> PAID, setiap langkah tercatat di payout_events.
func (s *Service) UpdateStatus(ctx context.Context, payoutID string, to Status, changedBy string) (*Payout, error) {
	now := s.now()
	var out *Payout
	err := s.Store.InTx(ctx, func(tx Tx) error {
		p, err := tx.LockPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if !CanTransition(p.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
		}
		if to == StatusPaid && p.PaidAt == nil {
			p.PaidAt = &now
		}
		if err := tx.UpdateStatus(ctx, p.ID, to, p.PaidAt); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, Event{
			ID: uuid.NewString(), PayoutID: p.ID,
			From: p.Status, To: to,
			ChangedBy: changedBy, CreatedAt: now,
		}); err != nil {
			return err
		}
		p.Status = to
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("payout status updated", zap.String("payout_id", payoutID), zap.String("status", string(to)))
	return out, nil
}
