package jobs

import (
	"context"
	"github.com/ariefcatur/go-marketplace-core/internal/sellermode"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"go.uber.org/zap"
	"time"
)

const (
	JobReleaseExpired = "release-expired-reservations"
	JobSettlement     = "process-eligible-settlements"
	JobModeRecompute  = "recompute-seller-modes"
)

type ReservationReleaser interface {
	ReleaseExpiredReservations(ctx context.Context) (int64, error)
}

type SettlementProcessor interface {
	ProcessEligibleSettlements(ctx context.Context) (settlement.Summary, error)
}

type ModeRecomputer interface {
	Run(ctx context.Context) (sellermode.Summary, error)
}

// ReleaseExpired: service sudah log jumlah yang di-expire.
func ReleaseExpired(r ReservationReleaser, every time.Duration) Job {
	return Job{Name: JobReleaseExpired, Interval: every, Run: func(ctx context.Context) error {
		_, err := r.ReleaseExpiredReservations(ctx)
		return err
	}}
}

func Settlement(p SettlementProcessor, every time.Duration, log *zap.Logger) Job {
	return Job{Name: JobSettlement, Interval: every, Run: func(ctx context.Context) error {
		sum, err := p.ProcessEligibleSettlements(ctx)
		if sum.Scanned > 0 {
			log.Info("settlement scan",
				zap.Int("scanned", sum.Scanned),
				zap.Int("credited", sum.Credited),
				zap.Int("skipped", sum.Skipped),
				zap.Int("failed", sum.Failed))
		}
		return err
	}}
}

func RecomputeModes(r ModeRecomputer, every time.Duration, log *zap.Logger) Job {
	return Job{Name: JobModeRecompute, Interval: every, Run: func(ctx context.Context) error {
		sum, err := r.Run(ctx)
		log.Info("seller modes recomputed",
			zap.Int("evaluated", sum.Evaluated),
			zap.Int("changed", sum.Changed),
			zap.Int("failed", sum.Failed))
		return err
	}}
}
