package sellermode

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
	"time"
)

// PGStore: mode tersimpan di seller_signals; sinyal diagregasi dari orders/ledger/complaints.
type PGStore struct{ DB postgres.Runner }

// OperationalMode: seller tanpa baris seller_signals dianggap NORMAL.
func (s *PGStore) OperationalMode(ctx context.Context, sellerID string) (Mode, error) {
	var m string
	err := s.DB.QueryRow(ctx, `SELECT mode FROM seller_signals WHERE seller_id = $1`, sellerID).Scan(&m)
	if errors.Is(err, pgx.ErrNoRows) {
		return Normal, nil
	}
	if err != nil {
		return "", fmt.Errorf("load seller mode: %w", err)
	}
	return Parse(m)
}

func (s *PGStore) SaveMode(ctx context.Context, sellerID string, mode Mode, sig Signals, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO seller_signals (seller_id, mode, previous_mode, order_count, rto_count, complaint_count, balance, computed_at)
		VALUES ($1, $2, NULL, $3, $4, $5, $6, $7)
		ON CONFLICT (seller_id) DO UPDATE
		SET previous_mode   = CASE WHEN seller_signals.mode <> EXCLUDED.mode THEN seller_signals.mode ELSE seller_signals.previous_mode END,
		    mode            = EXCLUDED.mode,
		    order_count     = EXCLUDED.order_count,
		    rto_count       = EXCLUDED.rto_count,
		    complaint_count = EXCLUDED.complaint_count,
		    balance         = EXCLUDED.balance,
		    computed_at     = EXCLUDED.computed_at`,
		sellerID, string(mode), sig.OrderCount, sig.RTOCount, sig.ComplaintCount, sig.Balance.StringFixed(2), at)
	if err != nil {
		return fmt.Errorf("save seller mode: %w", err)
	}
	return nil
}

func (s *PGStore) Sellers(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT seller_id FROM products ORDER BY seller_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGStore) Signals(ctx context.Context, sellerID string, since time.Time) (Signals, error) {
	var sig Signals
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(DISTINCT o.id),
		       COUNT(DISTINCT o.id) FILTER (WHERE o.is_rto)
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.seller_id = $1 AND o.created_at >= $2`, sellerID, since).
		Scan(&sig.OrderCount, &sig.RTOCount)
	if err != nil {
		return sig, fmt.Errorf("order signals: %w", err)
	}
	err = s.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM seller_complaints
		WHERE seller_id = $1 AND created_at >= $2`, sellerID, since).Scan(&sig.ComplaintCount)
	if err != nil {
		return sig, fmt.Errorf("complaint signals: %w", err)
	}
	if sig.Balance, err = ledger.AvailableBalance(ctx, s.DB, sellerID); err != nil {
		return sig, err
	}
	return sig, nil
}

func (s *PGStore) OrdersSince(ctx context.Context, sellerID string, since time.Time, excludeOrderID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(DISTINCT o.id)
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.seller_id = $1 AND o.created_at >= $2 AND o.id <> $3`,
		sellerID, since, excludeOrderID).Scan(&n)
	return n, err
}
