package sellermode

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"go.uber.org/zap"
	"time"
)

type SignalSource interface {
	Sellers(ctx context.Context) ([]string, error)
	Signals(ctx context.Context, sellerID string, since time.Time) (Signals, error)
}

type ModeStore interface {
	Reader
	SaveMode(ctx context.Context, sellerID string, mode Mode, s Signals, at time.Time) error
}

// ListingDeactivator: cascade ke inventory saat seller masuk ISOLATED.
type ListingDeactivator interface {
	DeactivateSeller(ctx context.Context, sellerID string) (int64, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, sellerID string) error
}

type ModeChange struct {
	SellerID            string
	From                Mode
	To                  Mode
	DeactivatedListings int64
	At                  time.Time
}

// EventPublisher fire-and-forget; implementasi log error sendiri.
type EventPublisher interface {
	ModeChanged(ctx context.Context, c ModeChange)
}

type Recomputer struct {
	Source      SignalSource
	Modes       ModeStore
	Evaluator   *RuleEvaluator
	Deactivator ListingDeactivator
	Cache       CacheInvalidator // opsional
	Publisher   EventPublisher   // opsional
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Window      time.Duration
	Now         func() time.Time
}

type Summary struct {
	Evaluated int
	Changed   int
	Failed    int
}

// Run menghitung ulang mode semua seller. Error per seller di-log lalu lanjut.
func (r *Recomputer) Run(ctx context.Context) (Summary, error) {
	sellers, err := r.Source.Sellers(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list sellers: %w", err)
	}
	var sum Summary
	for _, id := range sellers {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Evaluated++
		changed, err := r.recompute(ctx, id)
		if err != nil {
			sum.Failed++
			r.Log.Error("seller mode recompute failed", zap.String("seller_id", id), zap.Error(err))
			continue
		}
		if changed {
			sum.Changed++
		}
	}
	return sum, nil
}

func (r *Recomputer) recompute(ctx context.Context, sellerID string) (bool, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	window := r.Window
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	sig, err := r.Source.Signals(ctx, sellerID, now.Add(-window))
	if err != nil {
		return false, err
	}
	next, err := r.Evaluator.Evaluate(sig)
	if err != nil {
		return false, err
	}
	prev, err := r.Modes.OperationalMode(ctx, sellerID)
	if err != nil {
		return false, err
	}

	change := ModeChange{SellerID: sellerID, From: prev, To: next, At: now}
	// deactivate dulu: kalau SaveMode gagal, run berikutnya masih melihat transisi dan mengulang cascade
	if next == Isolated && prev != Isolated {
		if change.DeactivatedListings, err = r.Deactivator.DeactivateSeller(ctx, sellerID); err != nil {
			return false, err
		}
	}
	if err := r.Modes.SaveMode(ctx, sellerID, next, sig, now); err != nil {
		return false, err
	}
	if next == prev {
		return false, nil
	}

	if r.Cache != nil {
		if err := r.Cache.Invalidate(ctx, sellerID); err != nil {
			r.Log.Warn("mode cache invalidate failed", zap.String("seller_id", sellerID), zap.Error(err))
		}
	}
	r.Metrics.ModeChanges.WithLabelValues(string(next)).Inc()
	r.Log.Info("seller mode changed",
		zap.String("seller_id", sellerID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.Int64("deactivated_listings", change.DeactivatedListings))
	if r.Publisher != nil {
		r.Publisher.ModeChanged(ctx, change)
	}
	return true, nil
}
