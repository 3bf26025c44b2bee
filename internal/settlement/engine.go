package settlement

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"time"
)

const (
	DefaultHold      = 7 * 24 * time.Hour
	DefaultBatchSize = 500
)

type Engine struct {
	Store   Store
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Tracer  trace.Tracer // nil = noop

	Hold      time.Duration
	BatchSize int
	Now       func() time.Time
}

type Summary struct {
	Scanned  int
	Credited int
	Skipped  int
	Failed   int
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return noop.NewTracerProvider().Tracer("settlement")
}

func (e *Engine) hold() time.Duration {
	if e.Hold > 0 {
		return e.Hold
	}
	return DefaultHold
}

func (e *Engine) batchSize() int {
	if e.BatchSize > 0 && e.BatchSize <= DefaultBatchSize {
		return e.BatchSize
	}
	return DefaultBatchSize
}

// MarkOrderSettlementPendingIfEligible: order paid, bukan RTO, semua shipment DELIVERED,
// dan belum punya status settlement -> PENDING dengan eligible_at = now + hold.
func (e *Engine) MarkOrderSettlementPendingIfEligible(ctx context.Context, orderID string) (bool, error) {
	var marked bool
	err := e.Store.InTx(ctx, func(tx Tx) error {
		marked = false
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusPending) || !o.Paid() || o.IsRTO {
			return nil
		}
		total, delivered, err := tx.ShipmentCounts(ctx, orderID)
		if err != nil {
			return err
		}
		if total == 0 || delivered < total {
			return nil
		}
		if err := tx.MarkPending(ctx, orderID, e.now().Add(e.hold())); err != nil {
			return err
		}
		marked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark settlement pending %s: %w", orderID, err)
	}
	if marked {
		e.Log.Info("settlement pending", zap.String("order_id", orderID))
	}
	return marked, nil
}

// BlockSettlementForRTO mengunci order dari settlement. ELIGIBLE sudah dikredit:
// hanya is_rto yang ditandai, status tetap (tidak ada clawback otomatis).
func (e *Engine) BlockSettlementForRTO(ctx context.Context, orderID string) (bool, error) {
	var (
		blocked bool
		prev    Status
	)
	err := e.Store.InTx(ctx, func(tx Tx) error {
		blocked = false
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		prev = o.Status
		switch {
		case o.Status == StatusRTOBlocked:
			if !o.IsRTO {
				return tx.FlagRTO(ctx, orderID)
			}
			return nil
		case CanTransition(o.Status, StatusRTOBlocked):
			blocked = true
			return tx.BlockRTO(ctx, orderID)
		default:
			return tx.FlagRTO(ctx, orderID)
		}
	})
	if err != nil {
		return false, fmt.Errorf("block settlement %s: %w", orderID, err)
	}
	switch {
	case blocked:
		e.Metrics.SettlementBlocked.Inc()
		e.Log.Info("settlement blocked by RTO", zap.String("order_id", orderID), zap.String("from", string(prev)))
	case prev == StatusEligible:
		e.Log.Warn("RTO after settlement credited; manual reconciliation needed", zap.String("order_id", orderID))
	}
	return blocked, nil
}

// ProcessEligibleSettlements mengkredit order yang masa hold-nya sudah lewat.
// Satu transaksi per order; order yang gagal di-log dan dilewati.
func (e *Engine) ProcessEligibleSettlements(ctx context.Context) (Summary, error) {
	ctx, span := e.tracer().Start(ctx, "settlement.ProcessEligibleSettlements")
	defer span.End()

	now := e.now()
	ids, err := e.Store.DueOrders(ctx, now, e.batchSize())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "due orders")
		return Summary{}, fmt.Errorf("due orders: %w", err)
	}

	sum := Summary{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		credited, err := e.settleOrder(ctx, id, now)
		switch {
		case err != nil:
			sum.Failed++
			e.Metrics.SettlementFailures.Inc()
			e.Log.Error("settle order failed", zap.String("order_id", id), zap.Error(err))
		case credited:
			sum.Credited++
			e.Metrics.SettlementCredits.Inc()
		default:
			sum.Skipped++
		}
	}
	span.SetAttributes(
		attribute.Int("settlement.scanned", sum.Scanned),
		attribute.Int("settlement.credited", sum.Credited),
		attribute.Int("settlement.failed", sum.Failed),
	)
	return sum, nil
}

func (e *Engine) settleOrder(ctx context.Context, orderID string, now time.Time) (bool, error) {
	ctx, span := e.tracer().Start(ctx, "settlement.settleOrder", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	var credited bool
	err := e.Store.InTx(ctx, func(tx Tx) error {
		credited = false
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		// kondisi dicek ulang di bawah lock; bisa berubah sejak DueOrders
		if o.Status != StatusPending || o.IsRTO || !o.Paid() || o.EligibleAt == nil || o.EligibleAt.After(now) {
			return nil
		}
		shares, err := tx.SellerShares(ctx, orderID)
		if err != nil {
			return err
		}
		for _, sh := range shares {
			if !sh.Amount.IsPositive() {
				continue
			}
			if _, err := tx.CreditSeller(ctx, sh.SellerID, orderID, sh.Amount); err != nil {
				return fmt.Errorf("credit seller %s: %w", sh.SellerID, err)
			}
		}
		if err := tx.MarkEligible(ctx, orderID); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle order")
	}
	return credited, err
}

type CarrierUpdate struct {
	OrderID    string
	ShipmentID string
	Status     ShipmentStatus
}

// HandleCarrierStatus mencatat status shipment lalu menjalankan transisi settlement
// yang relevan. Aman di-replay: semua langkah idempotent.
func (e *Engine) HandleCarrierStatus(ctx context.Context, u CarrierUpdate) error {
	if u.OrderID == "" || u.ShipmentID == "" || u.Status == "" {
		return fmt.Errorf("%w: order, shipment and status required", ErrInvalidUpdate)
	}
	var stored ShipmentStatus
	err := e.Store.InTx(ctx, func(tx Tx) error {
		// order dikunci dulu: order tak dikenal jadi ErrNotFound, bukan FK violation
		if _, err := tx.LockOrder(ctx, u.OrderID); err != nil {
			return err
		}
		var err error
		stored, err = tx.RecordShipment(ctx, u.OrderID, u.ShipmentID, u.Status)
		return err
	})
	if err != nil {
		return fmt.Errorf("record shipment %s: %w", u.ShipmentID, err)
	}
	if stored != u.Status {
		e.Log.Info("stale carrier update ignored",
			zap.String("order_id", u.OrderID),
			zap.String("shipment_id", u.ShipmentID),
			zap.String("status", string(u.Status)),
			zap.String("stored", string(stored)))
	}

	// dispatch dari status tersimpan: replay DELIVERED tetap mencoba PENDING
	switch stored {
	case ShipmentDelivered:
		_, err = e.MarkOrderSettlementPendingIfEligible(ctx, u.OrderID)
	case ShipmentRTODelivered:
		_, err = e.BlockSettlementForRTO(ctx, u.OrderID)
	}
	return err
}

// InHoldEarnings: nilai order paid yang belum dikredit (PENDING atau belum masuk settlement).
func (e *Engine) InHoldEarnings(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	return e.Store.InHoldEarnings(ctx, sellerID)
}
