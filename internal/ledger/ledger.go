package ledger

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"time"
)

type EntryType string

const (
	Credit EntryType = "CREDIT"
	Debit  EntryType = "DEBIT"
)

const (
	ReasonOrderSettlement = "order_settlement"
	ReasonPayout          = "payout"
)

var ErrInvalidEntry = errors.New("invalid ledger entry")

// Entry: amount selalu positif, arah ditentukan Type.
type Entry struct {
	ID        string
	SellerID  string
	OrderID   string // untuk DEBIT payout berisi payout id
	Amount    decimal.Decimal
	Type      EntryType
	Reason    string
	SettledAt *time.Time
	PayoutID  *string
	CreatedAt time.Time
}

type InsertResult struct {
	Inserted bool
	ID       string
}

// Normalize membulatkan ke 2 desimal (NUMERIC(12,2)).
func Normalize(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func (e Entry) validate() error {
	switch {
	case e.SellerID == "" || e.OrderID == "" || e.Reason == "":
		return fmt.Errorf("%w: seller, order and reason are required", ErrInvalidEntry)
	case e.Type != Credit && e.Type != Debit:
		return fmt.Errorf("%w: type %q", ErrInvalidEntry, e.Type)
	case !Normalize(e.Amount).IsPositive():
		return fmt.Errorf("%w: amount %s must be positive", ErrInvalidEntry, e.Amount)
	}
	return nil
}

// InsertIdempotent menulis entry sekali per (seller, order, type, reason).
// Replay mengembalikan id baris yang sudah ada dengan Inserted=false.
func InsertIdempotent(ctx context.Context, db postgres.Runner, e Entry) (InsertResult, error) {
	if err := e.validate(); err != nil {
		return InsertResult{}, err
	}

	var id string
	err := db.QueryRow(ctx, `
		INSERT INTO seller_ledger (id, seller_id, order_id, amount, type, reason, settled_at, payout_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (seller_id, order_id, type, reason) DO NOTHING
		RETURNING id`,
		uuid.NewString(), e.SellerID, e.OrderID, Normalize(e.Amount).StringFixed(2),
		string(e.Type), e.Reason, e.SettledAt, e.PayoutID,
	).Scan(&id)
	if err == nil {
		return InsertResult{Inserted: true, ID: id}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return InsertResult{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	// conflict -> ambil id existing
	err = db.QueryRow(ctx, `
		SELECT id FROM seller_ledger
		WHERE seller_id = $1 AND order_id = $2 AND type = $3 AND reason = $4`,
		e.SellerID, e.OrderID, string(e.Type), e.Reason,
	).Scan(&id)
	if err != nil {
		return InsertResult{}, fmt.Errorf("load existing ledger entry: %w", err)
	}
	return InsertResult{Inserted: false, ID: id}, nil
}

// MarkSettledForPayout hanya menyentuh CREDIT yang belum settled.
func MarkSettledForPayout(ctx context.Context, db postgres.Runner, sellerID, payoutID string, at time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE seller_ledger
		SET settled_at = $3, payout_id = $2
		WHERE seller_id = $1 AND type = 'CREDIT' AND settled_at IS NULL`,
		sellerID, payoutID, at)
	if err != nil {
		return 0, fmt.Errorf("settle credits: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LockSeller serialisasi semua mutasi ledger satu seller sampai tx selesai.
func LockSeller(ctx context.Context, db postgres.Runner, sellerID string) error {
	if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "seller_ledger:"+sellerID); err != nil {
		return fmt.Errorf("lock seller ledger: %w", err)
	}
	return nil
}

// AvailableBalance = sum(CREDIT) - sum(DEBIT) atas entry yang belum settled.
func AvailableBalance(ctx context.Context, db postgres.Runner, sellerID string) (decimal.Decimal, error) {
	var s string
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount ELSE -amount END), 0)::text
		FROM seller_ledger
		WHERE seller_id = $1 AND settled_at IS NULL`, sellerID).Scan(&s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("available balance: %w", err)
	}
	return postgres.Decimal(s)
}

type Repo struct{ DB postgres.Runner }

func (r *Repo) AvailableBalance(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	return AvailableBalance(ctx, r.DB, sellerID)
}

func (r *Repo) ListEntries(ctx context.Context, sellerID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, seller_id, order_id, amount::text, type, reason, settled_at, payout_id, created_at
		FROM seller_ledger
		WHERE seller_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			amount string
			typ    string
		)
		if err := rows.Scan(&e.ID, &e.SellerID, &e.OrderID, &amount, &typ, &e.Reason, &e.SettledAt, &e.PayoutID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = postgres.Decimal(amount); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
