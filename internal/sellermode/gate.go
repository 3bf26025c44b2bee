package sellermode

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/shopspring/decimal"
	"time"
)

var (
	ErrSellerIsolated    = errors.New("seller isolated")
	ErrDailyOrderCap     = errors.New("seller daily order cap reached")
	ErrOrderValueTooHigh = errors.New("order value exceeds seller risk limit")
)

type OrderCounter interface {
	// OrdersSince menghitung order seller sejak `since`, tidak termasuk excludeOrderID.
	OrdersSince(ctx context.Context, sellerID string, since time.Time, excludeOrderID string) (int, error)
}

// Gate: admission check per mode seller.
type Gate struct {
	Modes         Reader
	Orders        OrderCounter
	DailyOrderCap int
	MaxOrderValue decimal.Decimal
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

func (g *Gate) AdmitReservation(ctx context.Context, sellerID string) error {
	m, err := g.Modes.OperationalMode(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("seller mode: %w", err)
	}
	if m == Isolated {
		g.reject(m)
		return fmt.Errorf("%w: %s", ErrSellerIsolated, sellerID)
	}
	return nil
}

func (g *Gate) AdmitOrder(ctx context.Context, sellerID, orderID string, value decimal.Decimal) error {
	m, err := g.Modes.OperationalMode(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("seller mode: %w", err)
	}

	switch m {
	case Isolated:
		g.reject(m)
		return fmt.Errorf("%w: %s", ErrSellerIsolated, sellerID)

	case StabilityLimited:
		if g.DailyOrderCap <= 0 {
			return nil
		}
		now := g.now()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		n, err := g.Orders.OrdersSince(ctx, sellerID, day, orderID)
		if err != nil {
			return fmt.Errorf("count seller orders: %w", err)
		}
		if n >= g.DailyOrderCap {
			g.reject(m)
			return fmt.Errorf("%w: %s has %d orders today (cap %d)", ErrDailyOrderCap, sellerID, n, g.DailyOrderCap)
		}

	case FinancialRisk:
		if g.MaxOrderValue.IsPositive() && value.GreaterThan(g.MaxOrderValue) {
			g.reject(m)
			return fmt.Errorf("%w: %s > %s", ErrOrderValueTooHigh, value.StringFixed(2), g.MaxOrderValue.StringFixed(2))
		}
	}
	return nil
}

func (g *Gate) reject(m Mode) { g.Metrics.Admission.WithLabelValues(string(m)).Inc() }

// IsRejection: error admission (dipetakan ke 409 di HTTP).
func IsRejection(err error) bool {
	return errors.Is(err, ErrSellerIsolated) || errors.Is(err, ErrDailyOrderCap) || errors.Is(err, ErrOrderValueTooHigh)
}
