package inventory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sort"
	"time"
)

const (
	DefaultReservationTTL    = 5 * time.Minute
	DefaultLowStockThreshold = 3
)

type Service struct {
	Store     Store
	Admission Admission // nil = semua seller boleh
	Notifier  Notifier  // nil = tanpa notifikasi
	Metrics   *metrics.Metrics
	Log       *zap.Logger

	ReservationTTL    time.Duration
	CartTTL           time.Duration
	LowStockThreshold int
	Now               func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) threshold() int {
	if s.LowStockThreshold > 0 {
		return s.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

func (s *Service) ttl(cartFlow bool) time.Duration {
	if cartFlow && s.CartTTL > 0 {
		return s.CartTTL
	}
	if s.ReservationTTL > 0 {
		return s.ReservationTTL
	}
	return DefaultReservationTTL
}

// Reserve menahan qty unit tanpa mengurangi stok.
func (s *Service) Reserve(ctx context.Context, productID, userID string, qty int) (*Reservation, error) {
	r, _, err := s.reserve(ctx, productID, userID, qty, nil)
	s.Metrics.Reservations.WithLabelValues(metrics.Result(err)).Inc()
	return r, err
}

// ReserveForCart sama dengan Reserve, plus snapshot item cart di transaksi yang sama.
func (s *Service) ReserveForCart(ctx context.Context, in CartReserveInput) (*Reservation, *cart.Item, error) {
	r, item, err := s.reserve(ctx, in.ProductID, in.UserID, in.Quantity, &in)
	s.Metrics.Reservations.WithLabelValues(metrics.Result(err)).Inc()
	return r, item, err
}

func (s *Service) reserve(ctx context.Context, productID, userID string, qty int, in *CartReserveInput) (*Reservation, *cart.Item, error) {
	if qty <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	sellerID, err := s.Store.ProductSeller(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if s.Admission != nil {
		if err := s.Admission.AdmitReservation(ctx, sellerID); err != nil {
			return nil, nil, err
		}
	}

	now := s.now()
	var (
		res  *Reservation
		item *cart.Item
	)
	err = s.Store.InTx(ctx, func(tx Tx) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.Status == ProductInactive {
			return ErrProductInactive
		}
		held, err := tx.ReservedQuantity(ctx, productID, now)
		if err != nil {
			return err
		}
		if available := p.Quantity - held; available < qty {
			return fmt.Errorf("%w: product %s has %d available, %d requested", ErrOutOfStock, productID, available, qty)
		}

		r := &Reservation{
			ID:        uuid.NewString(),
			ProductID: productID,
			UserID:    userID,
			Quantity:  qty,
			Status:    ReservationActive,
			ExpiresAt: now.Add(s.ttl(in != nil)),
			CreatedAt: now,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}

		if in != nil {
			price := p.Price
			if in.VariantID != "" {
				if price, err = tx.VariantPrice(ctx, productID, in.VariantID); err != nil {
					return err
				}
			}
			item, err = tx.SnapshotCartItem(ctx, userID, cart.Snapshot{
				ProductID:     productID,
				VariantID:     in.VariantID,
				Size:          in.Size,
				ProductName:   p.Name,
				UnitPrice:     price,
				Quantity:      qty,
				ReservationID: r.ID,
				SnapshotAt:    now,
			})
			if err != nil {
				return err
			}
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, item, nil
}

// ConvertReservation mengubah satu reservasi jadi pengurangan stok permanen.
func (s *Service) ConvertReservation(ctx context.Context, reservationID, userID string, isAdmin bool) (*Reservation, error) {
	out, err := s.convertOne(ctx, reservationID, userID, isAdmin)
	s.Metrics.Conversions.WithLabelValues("single", metrics.Result(err)).Inc()
	return out, err
}

func (s *Service) convertOne(ctx context.Context, reservationID, userID string, isAdmin bool) (*Reservation, error) {
	// baca tanpa lock dulu untuk tahu product-nya (lock product harus duluan)
	peek, err := s.Store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && peek.UserID != userID {
		return nil, ErrForbidden
	}
	sellerID, err := s.Store.ProductSeller(ctx, peek.ProductID)
	if err != nil {
		return nil, err
	}
	if s.Admission != nil {
		// konversi tunggal diperlakukan seperti order satu baris: cap harian dan
		// batas nilai ikut dicek, bukan hanya ISOLATED
		price, err := s.Store.ProductPrice(ctx, peek.ProductID)
		if err != nil {
			return nil, err
		}
		value := price.Mul(decimal.NewFromInt(int64(peek.Quantity)))
		if err := s.Admission.AdmitOrder(ctx, sellerID, peek.ID, value); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var (
		out   *Reservation
		alert *LowStockAlert
	)
	err = s.Store.InTx(ctx, func(tx Tx) error {
		alert = nil
		p, err := tx.LockProduct(ctx, peek.ProductID)
		if err != nil {
			return err
		}
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !isAdmin && r.UserID != userID {
			return ErrForbidden
		}
		if !r.Live(now) {
			return fmt.Errorf("%w: reservation %s is %s, expires %s", ErrExpired, r.ID, r.Status, r.ExpiresAt.Format(time.RFC3339))
		}
		if p.Quantity < r.Quantity {
			return fmt.Errorf("%w: product %s has %d on hand, reservation needs %d", ErrOutOfStock, p.ID, p.Quantity, r.Quantity)
		}

		if err := tx.MarkConverted(ctx, []string{r.ID}); err != nil {
			return err
		}
		if alert, err = s.consumeStock(ctx, tx, p, r.Quantity); err != nil {
			return err
		}
		r.Status = ReservationConverted
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, alert)
	return out, nil
}

// ConvertReservationsForOrder: all-or-nothing untuk semua produk di order.
func (s *Service) ConvertReservationsForOrder(ctx context.Context, orderID, userID string) ([]Reservation, error) {
	out, err := s.convertOrder(ctx, orderID, userID)
	s.Metrics.Conversions.WithLabelValues("order", metrics.Result(err)).Inc()
	return out, err
}

type productNeed struct {
	productID string
	sellerID  string
	quantity  int
}

func (s *Service) convertOrder(ctx context.Context, orderID, userID string) ([]Reservation, error) {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	needs, sellerValue := aggregateLines(order.Lines)
	if s.Admission != nil {
		sellers := make([]string, 0, len(sellerValue))
		for id := range sellerValue {
			sellers = append(sellers, id)
		}
		sort.Strings(sellers)
		for _, id := range sellers {
			if err := s.Admission.AdmitOrder(ctx, id, orderID, sellerValue[id]); err != nil {
				return nil, err
			}
		}
	}

	now := s.now()
	var (
		converted []Reservation
		alerts    []LowStockAlert
	)
	err = s.Store.InTx(ctx, func(tx Tx) error {
		converted, alerts = nil, nil
		for _, n := range needs {
			p, err := tx.LockProduct(ctx, n.productID)
			if err != nil {
				return err
			}
			if p.Quantity < n.quantity {
				return fmt.Errorf("%w: product %s has %d on hand, order needs %d", ErrOutOfStock, p.ID, p.Quantity, n.quantity)
			}
			live, err := tx.LockLiveReservations(ctx, n.productID, userID, now)
			if err != nil {
				return err
			}
			picked, err := pickReservations(live, n.quantity)
			if err != nil {
				return fmt.Errorf("product %s: %w", n.productID, err)
			}

			ids := make([]string, len(picked))
			for i := range picked {
				ids[i] = picked[i].ID
				picked[i].Status = ReservationConverted
			}
			if err := tx.MarkConverted(ctx, ids); err != nil {
				return err
			}
			alert, err := s.consumeStock(ctx, tx, p, n.quantity)
			if err != nil {
				return err
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
			converted = append(converted, picked...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		s.notify(ctx, &alerts[i])
	}
	return converted, nil
}

// aggregateLines: kebutuhan per produk (urut product id) + nilai order per seller.
func aggregateLines(lines []OrderLine) ([]productNeed, map[string]decimal.Decimal) {
	byProduct := map[string]*productNeed{}
	sellerValue := map[string]decimal.Decimal{}
	for _, l := range lines {
		n, ok := byProduct[l.ProductID]
		if !ok {
			n = &productNeed{productID: l.ProductID, sellerID: l.SellerID}
			byProduct[l.ProductID] = n
		}
		n.quantity += l.Quantity
		sellerValue[l.SellerID] = sellerValue[l.SellerID].Add(l.LineTotal)
	}
	needs := make([]productNeed, 0, len(byProduct))
	for _, n := range byProduct {
		needs = append(needs, *n)
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].productID < needs[j].productID })
	return needs, sellerValue
}

// pickReservations mengambil reservasi utuh dari yang paling lama.
// Reservasi tidak pernah dipecah: kalau yang berikutnya melebihi sisa kebutuhan -> mismatch.
func pickReservations(live []Reservation, need int) ([]Reservation, error) {
	remaining := need
	var picked []Reservation
	for _, r := range live {
		if remaining == 0 {
			break
		}
		if r.Quantity > remaining {
			return nil, fmt.Errorf("%w: reservation %s holds %d, only %d still needed", ErrReservationMismatch, r.ID, r.Quantity, remaining)
		}
		picked = append(picked, r)
		remaining -= r.Quantity
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: %d of %d units have no active reservation", ErrExpired, remaining, need)
	}
	return picked, nil
}

func (s *Service) consumeStock(ctx context.Context, tx Tx, p *Product, qty int) (*LowStockAlert, error) {
	left, err := tx.DecrementStock(ctx, p.ID, qty)
	if err != nil {
		return nil, err
	}
	if left <= 0 && p.Status == ProductLive {
		if err := tx.SetProductStatus(ctx, p.ID, ProductOutOfStock); err != nil {
			return nil, err
		}
	}
	if left <= s.threshold() {
		return &LowStockAlert{ProductID: p.ID, SellerID: p.SellerID, Remaining: left, Threshold: s.threshold()}, nil
	}
	return nil, nil
}

func (s *Service) notify(ctx context.Context, a *LowStockAlert) {
	if a == nil || s.Notifier == nil {
		return
	}
	s.Notifier.LowStock(ctx, *a)
}

// ReleaseExpiredReservations: flip set-based ACTIVE -> EXPIRED. Stok tidak disentuh
// karena reservasi memang tidak pernah mengurangi stok.
func (s *Service) ReleaseExpiredReservations(ctx context.Context) (int64, error) {
	n, err := s.Store.ExpireReservations(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}
	if n > 0 {
		s.Metrics.ReservationsExpired.Add(float64(n))
		s.Log.Info("reservations expired", zap.Int64("count", n))
	}
	return n, nil
}

// DeactivateSeller menonaktifkan semua listing seller (cascade mode ISOLATED).
func (s *Service) DeactivateSeller(ctx context.Context, sellerID string) (int64, error) {
	n, err := s.Store.DeactivateSellerProducts(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("deactivate seller %s: %w", sellerID, err)
	}
	s.Log.Warn("seller listings deactivated", zap.String("seller_id", sellerID), zap.Int64("count", n))
	return n, nil
}

// IsBusinessConflict: error yang dipetakan ke 409.
func IsBusinessConflict(err error) bool {
	return errors.Is(err, ErrOutOfStock) || errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrReservationMismatch) || errors.Is(err, ErrProductInactive)
}
