package inventory

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	store  *memStore
	t      *testing.T
	mu     sync.Mutex
	alerts []LowStockAlert
}

func (n *recordingNotifier) LowStock(ctx context.Context, a LowStockAlert) {
	// notifikasi harus terjadi setelah commit: lock store tidak boleh sedang dipegang
	if !n.store.mu.TryLock() {
		n.t.Error("low-stock notification sent while transaction still open")
	} else {
		n.store.mu.Unlock()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

type stubAdmission struct {
	reservation map[string]error
	order       map[string]error
	orderValues map[string]decimal.Decimal
}

func (a *stubAdmission) AdmitReservation(ctx context.Context, sellerID string) error {
	return a.reservation[sellerID]
}

func (a *stubAdmission) AdmitOrder(ctx context.Context, sellerID, orderID string, value decimal.Decimal) error {
	if a.orderValues != nil {
		a.orderValues[sellerID] = value
	}
	return a.order[sellerID]
}

type fixture struct {
	store    *memStore
	notifier *recordingNotifier
	svc      *Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), now: t0}
	f.notifier = &recordingNotifier{store: f.store, t: t}
	f.svc = &Service{
		Store:    f.store,
		Notifier: f.notifier,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Log:      zap.NewNop(),
		CartTTL:  15 * time.Minute,
		Now:      func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) addProduct(id, seller string, qty int) {
	f.store.products[id] = &Product{
		ID: id, SellerID: seller, Name: "Product " + id,
		Price: decimal.NewFromInt(50000), Quantity: qty, Status: ProductLive,
	}
}

func (f *fixture) addReservation(id, product, user string, qty int, created time.Time, status ReservationStatus) {
	f.store.reservations[id] = &Reservation{
		ID: id, ProductID: product, UserID: user, Quantity: qty, Status: status,
		CreatedAt: created, ExpiresAt: created.Add(DefaultReservationTTL),
	}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("holds without touching stock", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 5)

		r, err := f.svc.Reserve(ctx, "p1", "u1", 2)
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if r.Status != ReservationActive || r.Quantity != 2 {
			t.Fatalf("reservation = %+v", r)
		}
		if !r.ExpiresAt.Equal(t0.Add(5 * time.Minute)) {
			t.Errorf("expires_at = %v, want now+5m", r.ExpiresAt)
		}
		if got := f.store.product("p1").Quantity; got != 5 {
			t.Errorf("stock = %d, reservation must not decrement", got)
		}
	})

	t.Run("counts only live reservations", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 3)
		f.addReservation("live", "p1", "u2", 2, t0.Add(-time.Minute), ReservationActive)
		// lewat TTL tapi belum disapu: tidak dihitung
		f.addReservation("stale", "p1", "u3", 1, t0.Add(-10*time.Minute), ReservationActive)
		f.addReservation("done", "p1", "u3", 1, t0.Add(-time.Minute), ReservationConverted)

		if _, err := f.svc.Reserve(ctx, "p1", "u1", 1); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if _, err := f.svc.Reserve(ctx, "p1", "u1", 1); !errors.Is(err, ErrOutOfStock) {
			t.Fatalf("err = %v, want ErrOutOfStock", err)
		}
	})

	tests := []struct {
		name    string
		product string
		qty     int
		setup   func(f *fixture)
		wantErr error
	}{
		{name: "zero quantity", product: "p1", qty: 0, wantErr: ErrInvalidQuantity},
		{name: "unknown product", product: "nope", qty: 1, wantErr: ErrNotFound},
		{name: "more than stock", product: "p1", qty: 6, wantErr: ErrOutOfStock},
		{
			name: "inactive product", product: "p1", qty: 1, wantErr: ErrProductInactive,
			setup: func(f *fixture) { f.store.products["p1"].Status = ProductInactive },
		},
		{
			name: "isolated seller", product: "p1", qty: 1, wantErr: errIsolated,
			setup: func(f *fixture) {
				f.svc.Admission = &stubAdmission{reservation: map[string]error{"s1": errIsolated}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addProduct("p1", "s1", 5)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.Reserve(ctx, tt.product, "u1", tt.qty)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(f.store.reservations) != 0 {
				t.Errorf("failed reserve left %d reservations", len(f.store.reservations))
			}
		})
	}
}

var (
	errIsolated = errors.New("seller isolated")
	errDailyCap = errors.New("daily order cap reached")
)

func TestReserveConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	f.addProduct("p1", "s1", 3)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Reserve(context.Background(), "p1", "u1", 1); err == nil {
				ok.Add(1)
			} else if !errors.Is(err, ErrOutOfStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 3 {
		t.Fatalf("successful reservations = %d, want 3", ok.Load())
	}
}

func TestReserveForCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addProduct("p1", "s1", 10)
	f.store.variants["p1/v-red"] = decimal.NewFromInt(65000)

	r1, item, err := f.svc.ReserveForCart(ctx, CartReserveInput{ProductID: "p1", VariantID: "v-red", Size: "L", UserID: "u1", Quantity: 2})
	if err != nil {
		t.Fatalf("ReserveForCart: %v", err)
	}
	if !r1.ExpiresAt.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("cart ttl not applied: %v", r1.ExpiresAt)
	}
	if !item.UnitPrice.Equal(decimal.NewFromInt(65000)) || item.ReservationID != r1.ID {
		t.Fatalf("snapshot = %+v", item)
	}

	// harga produk berubah; snapshot lama tetap, quantity di-merge
	f.store.variants["p1/v-red"] = decimal.NewFromInt(70000)
	r2, item, err := f.svc.ReserveForCart(ctx, CartReserveInput{ProductID: "p1", VariantID: "v-red", Size: "L", UserID: "u1", Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if item.Quantity != 3 || !item.UnitPrice.Equal(decimal.NewFromInt(65000)) || item.ReservationID != r2.ID {
		t.Fatalf("merged item = %+v", item)
	}

	_, _, err = f.svc.ReserveForCart(ctx, CartReserveInput{ProductID: "p1", VariantID: "v-missing", UserID: "u1", Quantity: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(f.store.reservations) != 2 {
		t.Fatalf("failed snapshot must roll back reservation, have %d", len(f.store.reservations))
	}
}

func TestConvertReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements and marks out of stock", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 2)
		f.addReservation("r1", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)

		r, err := f.svc.ConvertReservation(ctx, "r1", "u1", false)
		if err != nil {
			t.Fatalf("ConvertReservation: %v", err)
		}
		if r.Status != ReservationConverted {
			t.Errorf("status = %s", r.Status)
		}
		p := f.store.product("p1")
		if p.Quantity != 0 || p.Status != ProductOutOfStock {
			t.Errorf("product = %+v, want qty 0 OUT_OF_STOCK", p)
		}
		if len(f.notifier.alerts) != 1 || f.notifier.alerts[0].Remaining != 0 {
			t.Errorf("alerts = %+v", f.notifier.alerts)
		}

		// kedua kali: sudah terminal
		if _, err := f.svc.ConvertReservation(ctx, "r1", "u1", false); !errors.Is(err, ErrExpired) {
			t.Fatalf("second convert err = %v, want ErrExpired", err)
		}
		if got := f.store.product("p1").Quantity; got != 0 {
			t.Errorf("stock decremented twice: %d", got)
		}
	})

	t.Run("no alert above threshold", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 10)
		f.addReservation("r1", "p1", "u1", 1, t0.Add(-time.Minute), ReservationActive)

		if _, err := f.svc.ConvertReservation(ctx, "r1", "u1", false); err != nil {
			t.Fatal(err)
		}
		if len(f.notifier.alerts) != 0 {
			t.Errorf("unexpected alerts %+v", f.notifier.alerts)
		}
	})

	tests := []struct {
		name    string
		user    string
		admin   bool
		setup   func(f *fixture)
		wantErr error
	}{
		{name: "unknown", user: "u1", wantErr: ErrNotFound, setup: func(f *fixture) { delete(f.store.reservations, "r1") }},
		{name: "other user", user: "u2", wantErr: ErrForbidden},
		{name: "expired by clock", user: "u1", wantErr: ErrExpired, setup: func(f *fixture) { f.now = t0.Add(time.Hour) }},
		{name: "swept", user: "u1", wantErr: ErrExpired, setup: func(f *fixture) { f.store.reservations["r1"].Status = ReservationExpired }},
		{name: "stock gone", user: "u1", wantErr: ErrOutOfStock, setup: func(f *fixture) { f.store.products["p1"].Quantity = 1 }},
		{
			name: "isolated seller", user: "u1", wantErr: errIsolated,
			setup: func(f *fixture) {
				f.svc.Admission = &stubAdmission{order: map[string]error{"s1": errIsolated}}
			},
		},
		{
			name: "daily cap reached", user: "u1", wantErr: errDailyCap,
			setup: func(f *fixture) {
				f.svc.Admission = &stubAdmission{order: map[string]error{"s1": errDailyCap}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addProduct("p1", "s1", 5)
			f.addReservation("r1", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)
			if tt.setup != nil {
				tt.setup(f)
			}
			before := f.store.product("p1").Quantity

			_, err := f.svc.ConvertReservation(ctx, "r1", tt.user, tt.admin)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := f.store.product("p1").Quantity; got != before {
				t.Errorf("stock changed on failure: %d -> %d", before, got)
			}
		})
	}

	t.Run("admission sees reservation value", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 5)
		f.addReservation("r1", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)
		adm := &stubAdmission{orderValues: map[string]decimal.Decimal{}}
		f.svc.Admission = adm

		if _, err := f.svc.ConvertReservation(ctx, "r1", "u1", false); err != nil {
			t.Fatalf("ConvertReservation: %v", err)
		}
		if got := adm.orderValues["s1"]; !got.Equal(decimal.NewFromInt(100000)) {
			t.Fatalf("admitted value = %s, want 100000", got)
		}
	})

	t.Run("admin may convert for another user", func(t *testing.T) {
		f := newFixture(t)
		f.addProduct("p1", "s1", 5)
		f.addReservation("r1", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)
		if _, err := f.svc.ConvertReservation(ctx, "r1", "admin-1", true); err != nil {
			t.Fatalf("admin convert: %v", err)
		}
	})
}

func TestConvertReservationsForOrder(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.addProduct("p1", "s1", 10)
		f.addProduct("p2", "s2", 4)
		f.store.orders["o1"] = &Order{ID: "o1", UserID: "u1", Lines: []OrderLine{
			{ProductID: "p2", SellerID: "s2", Quantity: 1, LineTotal: decimal.NewFromInt(20000)},
			{ProductID: "p1", SellerID: "s1", Quantity: 2, LineTotal: decimal.NewFromInt(100000)},
			{ProductID: "p1", SellerID: "s1", Quantity: 1, LineTotal: decimal.NewFromInt(50000)},
		}}
		return f
	}

	t.Run("consumes whole reservations oldest first", func(t *testing.T) {
		f := setup(t)
		f.addReservation("a-new", "p1", "u1", 2, t0.Add(-1*time.Minute), ReservationActive)
		f.addReservation("b-old", "p1", "u1", 1, t0.Add(-3*time.Minute), ReservationActive)
		f.addReservation("c-extra", "p1", "u1", 4, t0.Add(-30*time.Second), ReservationActive)
		f.addReservation("p2-r", "p2", "u1", 1, t0.Add(-time.Minute), ReservationActive)
		f.addReservation("other", "p1", "u9", 1, t0.Add(-5*time.Minute), ReservationActive)

		got, err := f.svc.ConvertReservationsForOrder(ctx, "o1", "u1")
		if err != nil {
			t.Fatalf("ConvertReservationsForOrder: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("converted %d reservations, want 3", len(got))
		}
		for _, id := range []string{"a-new", "b-old", "p2-r"} {
			if s := f.store.reservation(id).Status; s != ReservationConverted {
				t.Errorf("%s status = %s", id, s)
			}
		}
		for _, id := range []string{"c-extra", "other"} {
			if s := f.store.reservation(id).Status; s != ReservationActive {
				t.Errorf("%s should stay ACTIVE, got %s", id, s)
			}
		}
		if q := f.store.product("p1").Quantity; q != 7 {
			t.Errorf("p1 stock = %d, want 7 (decremented once by 3)", q)
		}
		if q := f.store.product("p2").Quantity; q != 3 {
			t.Errorf("p2 stock = %d, want 3", q)
		}
		if len(f.notifier.alerts) != 1 || f.notifier.alerts[0].ProductID != "p2" {
			t.Errorf("alerts = %+v, want one for p2", f.notifier.alerts)
		}
	})

	t.Run("passes per-seller order value to admission", func(t *testing.T) {
		f := setup(t)
		adm := &stubAdmission{orderValues: map[string]decimal.Decimal{}}
		f.svc.Admission = adm
		f.addReservation("r1", "p1", "u1", 3, t0.Add(-time.Minute), ReservationActive)
		f.addReservation("r2", "p2", "u1", 1, t0.Add(-time.Minute), ReservationActive)

		if _, err := f.svc.ConvertReservationsForOrder(ctx, "o1", "u1"); err != nil {
			t.Fatal(err)
		}
		if !adm.orderValues["s1"].Equal(decimal.NewFromInt(150000)) || !adm.orderValues["s2"].Equal(decimal.NewFromInt(20000)) {
			t.Errorf("order values = %v", adm.orderValues)
		}
	})

	tests := []struct {
		name    string
		user    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name: "overshoot is a mismatch", user: "u1", wantErr: ErrReservationMismatch,
			setup: func(f *fixture) {
				f.addReservation("r1", "p1", "u1", 2, t0.Add(-2*time.Minute), ReservationActive)
				f.addReservation("r2", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)
				f.addReservation("r3", "p2", "u1", 1, t0.Add(-time.Minute), ReservationActive)
			},
		},
		{
			name: "shortfall is expired", user: "u1", wantErr: ErrExpired,
			setup: func(f *fixture) {
				f.addReservation("r1", "p1", "u1", 2, t0.Add(-time.Minute), ReservationActive)
				f.addReservation("r2", "p1", "u1", 1, t0.Add(-10*time.Minute), ReservationActive)
				f.addReservation("r3", "p2", "u1", 1, t0.Add(-time.Minute), ReservationActive)
			},
		},
		{
			name: "second product fails after first succeeded", user: "u1", wantErr: ErrExpired,
			setup: func(f *fixture) {
				f.addReservation("r1", "p1", "u1", 3, t0.Add(-time.Minute), ReservationActive)
			},
		},
		{
			name: "aggregate stock short", user: "u1", wantErr: ErrOutOfStock,
			setup: func(f *fixture) {
				f.store.products["p1"].Quantity = 2
				f.addReservation("r1", "p1", "u1", 3, t0.Add(-time.Minute), ReservationActive)
			},
		},
		{name: "not the buyer", user: "u2", wantErr: ErrForbidden},
		{
			name: "admission refuses", user: "u1", wantErr: errIsolated,
			setup: func(f *fixture) {
				f.svc.Admission = &stubAdmission{order: map[string]error{"s2": errIsolated}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.ConvertReservationsForOrder(ctx, "o1", tt.user)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if q := f.store.product("p1").Quantity; q != 10 && q != 2 {
				t.Errorf("p1 stock changed on failure: %d", q)
			}
			if q := f.store.product("p2").Quantity; q != 4 {
				t.Errorf("p2 stock changed on failure: %d", q)
			}
			for id, r := range f.store.reservations {
				if r.Status == ReservationConverted {
					t.Errorf("reservation %s converted despite failure", id)
				}
			}
			if len(f.notifier.alerts) != 0 {
				t.Errorf("alerts sent for failed conversion: %+v", f.notifier.alerts)
			}
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.ConvertReservationsForOrder(ctx, "nope", "u1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestPickReservations(t *testing.T) {
	live := []Reservation{
		{ID: "a", Quantity: 1},
		{ID: "b", Quantity: 2},
		{ID: "c", Quantity: 3},
	}
	tests := []struct {
		need    int
		wantIDs []string
		wantErr error
	}{
		{need: 1, wantIDs: []string{"a"}},
		{need: 3, wantIDs: []string{"a", "b"}},
		{need: 6, wantIDs: []string{"a", "b", "c"}},
		{need: 2, wantErr: ErrReservationMismatch},
		{need: 5, wantErr: ErrReservationMismatch},
		{need: 7, wantErr: ErrExpired},
	}
	for _, tt := range tests {
		got, err := pickReservations(live, tt.need)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("need %d: err = %v, want %v", tt.need, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.wantIDs) {
			t.Errorf("need %d: picked %d, want %v", tt.need, len(got), tt.wantIDs)
			continue
		}
		for i := range got {
			if got[i].ID != tt.wantIDs[i] {
				t.Errorf("need %d: picked[%d] = %s, want %s", tt.need, i, got[i].ID, tt.wantIDs[i])
			}
		}
	}
}

func TestReleaseExpiredReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addProduct("p1", "s1", 5)
	f.addReservation("old", "p1", "u1", 2, t0.Add(-10*time.Minute), ReservationActive)
	f.addReservation("edge", "p1", "u1", 1, t0.Add(-5*time.Minute), ReservationActive) // expires_at == now
	f.addReservation("fresh", "p1", "u1", 1, t0.Add(-time.Minute), ReservationActive)
	f.addReservation("conv", "p1", "u1", 1, t0.Add(-time.Hour), ReservationConverted)

	n, err := f.svc.ReleaseExpiredReservations(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first sweep = %d, %v; want 2", n, err)
	}
	if s := f.store.reservation("fresh").Status; s != ReservationActive {
		t.Errorf("fresh = %s", s)
	}
	if s := f.store.reservation("conv").Status; s != ReservationConverted {
		t.Errorf("terminal reservation changed to %s", s)
	}
	if q := f.store.product("p1").Quantity; q != 5 {
		t.Errorf("sweep touched stock: %d", q)
	}

	n, err = f.svc.ReleaseExpiredReservations(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v; want 0", n, err)
	}
}

func TestDeactivateSeller(t *testing.T) {
	f := newFixture(t)
	f.addProduct("p1", "s1", 5)
	f.addProduct("p2", "s1", 0)
	f.store.products["p2"].Status = ProductOutOfStock
	f.addProduct("p3", "s2", 5)

	n, err := f.svc.DeactivateSeller(context.Background(), "s1")
	if err != nil || n != 1 {
		t.Fatalf("DeactivateSeller = %d, %v; want 1", n, err)
	}
	if got := f.store.product("p2").Status; got != ProductOutOfStock {
		t.Errorf("out-of-stock listing = %s, want OUT_OF_STOCK", got)
	}
	if f.store.product("p3").Status != ProductLive {
		t.Error("other seller's listing touched")
	}
	if _, err := f.svc.Reserve(context.Background(), "p1", "u1", 1); !errors.Is(err, ErrProductInactive) {
		t.Fatalf("reserve on deactivated listing: %v", err)
	}
}

func TestReservationStatusTerminal(t *testing.T) {
	if ReservationActive.Terminal() || !ReservationConverted.Terminal() || !ReservationExpired.Terminal() {
		t.Fatal("terminal states wrong")
	}
}
