package settlement

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
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

func (s *PGStore) DueOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE settlement_status = 'PENDING'
		  AND settlement_eligible_at <= $1
		  AND lower(payment_status) = 'paid'
		  AND NOT is_rto
		ORDER BY settlement_eligible_at, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) InHoldEarnings(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	var v string
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.line_total), 0)::text
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.seller_id = $1
		  AND lower(o.payment_status) = 'paid'
		  AND NOT o.is_rto
		  AND (o.settlement_status IS NULL OR o.settlement_status = 'PENDING')`, sellerID).Scan(&v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("in-hold earnings: %w", err)
	}
	return postgres.Decimal(v)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	var (
		o      Order
		status *string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, payment_status, is_rto, settlement_status, settlement_eligible_at
		FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.PaymentStatus, &o.IsRTO, &status, &o.EligibleAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if status != nil {
		o.Status = Status(*status)
	}
	return &o, nil
}

func (t *pgTx) ShipmentCounts(ctx context.Context, orderID string) (total, delivered int, err error) {
	err = t.tx.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'DELIVERED')
		FROM shipments WHERE order_id = $1`, orderID).Scan(&total, &delivered)
	return total, delivered, err
}

func (t *pgTx) RecordShipment(ctx context.Context, orderID, shipmentID string, status ShipmentStatus) (ShipmentStatus, error) {
	var stored string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipments (id, order_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		WHERE shipments.status NOT IN ('DELIVERED', 'RTO_DELIVERED')
		  AND shipments.order_id = EXCLUDED.order_id
		RETURNING status`,
		shipmentID, orderID, string(status)).Scan(&stored)
	if err == nil {
		return ShipmentStatus(stored), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	// conflict tanpa update: status terminal atau shipment milik order lain
	var owner string
	err = t.tx.QueryRow(ctx, `SELECT order_id, status FROM shipments WHERE id = $1`, shipmentID).Scan(&owner, &stored)
	if err != nil {
		return "", fmt.Errorf("load shipment %s: %w", shipmentID, err)
	}
	if owner != orderID {
		return "", fmt.Errorf("%w: shipment %s belongs to order %s", ErrInvalidUpdate, shipmentID, owner)
	}
	return ShipmentStatus(stored), nil
}

func (t *pgTx) MarkPending(ctx context.Context, orderID string, eligibleAt time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET settlement_status = 'PENDING', settlement_eligible_at = $2
		WHERE id = $1 AND settlement_status IS NULL`, orderID, eligibleAt)
	return err
}

func (t *pgTx) MarkEligible(ctx context.Context, orderID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET settlement_status = 'ELIGIBLE'
		WHERE id = $1 AND settlement_status = 'PENDING'`, orderID)
	return err
}

func (t *pgTx) BlockRTO(ctx context.Context, orderID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET is_rto = true, settlement_status = 'RTO_BLOCKED'
		WHERE id = $1 AND (settlement_status IS NULL OR settlement_status = 'PENDING')`, orderID)
	return err
}

func (t *pgTx) FlagRTO(ctx context.Context, orderID string) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET is_rto = true WHERE id = $1`, orderID)
	return err
}

func (t *pgTx) SellerShares(ctx context.Context, orderID string) ([]SellerShare, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seller_id, SUM(line_total)::text
		FROM order_items WHERE order_id = $1
		GROUP BY seller_id
		ORDER BY seller_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SellerShare
	for rows.Next() {
		var (
			sh  SellerShare
			amt string
		)
		if err := rows.Scan(&sh.SellerID, &amt); err != nil {
			return nil, err
		}
		if sh.Amount, err = postgres.Decimal(amt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (t *pgTx) CreditSeller(ctx context.Context, sellerID, orderID string, amount decimal.Decimal) (ledger.InsertResult, error) {
	if err := ledger.LockSeller(ctx, t.tx, sellerID); err != nil {
		return ledger.InsertResult{}, err
	}
	return ledger.InsertIdempotent(ctx, t.tx, ledger.Entry{
		SellerID: sellerID,
		OrderID:  orderID,
		Amount:   amount,
		Type:     ledger.Credit,
		Reason:   ledger.ReasonOrderSettlement,
	})
}
