package inventory

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/shopspring/decimal"
	"sort"
	"sync"
	"time"
)

// memStore: Store in-memory untuk test. InTx serial (mutex) dan rollback via snapshot.
type memStore struct {
	mu            sync.Mutex
	products      map[string]*Product
	variants      map[string]decimal.Decimal
	reservations  map[string]*Reservation
	orders        map[string]*Order
	cartItems     map[string]*cart.Item
	failDecrement map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		products:      map[string]*Product{},
		variants:      map[string]decimal.Decimal{},
		reservations:  map[string]*Reservation{},
		orders:        map[string]*Order{},
		cartItems:     map[string]*cart.Item{},
		failDecrement: map[string]error{},
	}
}

type memState struct {
	products     map[string]Product
	reservations map[string]Reservation
	cartItems    map[string]cart.Item
}

func (m *memStore) save() memState {
	st := memState{
		products:     map[string]Product{},
		reservations: map[string]Reservation{},
		cartItems:    map[string]cart.Item{},
	}
	for k, v := range m.products {
		st.products[k] = *v
	}
	for k, v := range m.reservations {
		st.reservations[k] = *v
	}
	for k, v := range m.cartItems {
		st.cartItems[k] = *v
	}
	return st
}

func (m *memStore) restore(st memState) {
	m.products = map[string]*Product{}
	for k, v := range st.products {
		v := v
		m.products[k] = &v
	}
	m.reservations = map[string]*Reservation{}
	for k, v := range st.reservations {
		v := v
		m.reservations[k] = &v
	}
	m.cartItems = map[string]*cart.Item{}
	for k, v := range st.cartItems {
		v := v
		m.cartItems[k] = &v
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.save()
	if err := fn(memTx{m}); err != nil {
		m.restore(st)
		return err
	}
	return nil
}

func (m *memStore) ProductSeller(ctx context.Context, productID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return "", ErrNotFound
	}
	return p.SellerID, nil
}

func (m *memStore) ProductPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return p.Price, nil
}

func (m *memStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ExpireReservations(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reservations {
		if r.Status == ReservationActive && !r.ExpiresAt.After(now) {
			r.Status = ReservationExpired
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeactivateSellerProducts(ctx context.Context, sellerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.products {
		if p.SellerID == sellerID && p.Status == ProductLive {
			p.Status = ProductInactive
			n++
		}
	}
	return n, nil
}

// helper test (tanpa lock; dipanggil saat tidak ada tx berjalan)
func (m *memStore) product(id string) Product { return *m.products[id] }
func (m *memStore) reservation(id string) Reservation { return *m.reservations[id] }

type memTx struct{ m *memStore }

func (t memTx) LockProduct(ctx context.Context, productID string) (*Product, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	cp := *p
	return &cp, nil
}

func (t memTx) ReservedQuantity(ctx context.Context, productID string, now time.Time) (int, error) {
	n := 0
	for _, r := range t.m.reservations {
		if r.ProductID == productID && r.Live(now) {
			n += r.Quantity
		}
	}
	return n, nil
}

func (t memTx) InsertReservation(ctx context.Context, r *Reservation) error {
	cp := *r
	t.m.reservations[r.ID] = &cp
	return nil
}

func (t memTx) LockReservation(ctx context.Context, id string) (*Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t memTx) LockLiveReservations(ctx context.Context, productID, userID string, now time.Time) ([]Reservation, error) {
	var out []Reservation
	for _, r := range t.m.reservations {
		if r.ProductID == productID && r.UserID == userID && r.Live(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t memTx) MarkConverted(ctx context.Context, ids []string) error {
	for _, id := range ids {
		r, ok := t.m.reservations[id]
		if !ok || r.Status != ReservationActive {
			return fmt.Errorf("%w: reservation %s", ErrExpired, id)
		}
		r.Status = ReservationConverted
	}
	return nil
}

func (t memTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	if err := t.m.failDecrement[productID]; err != nil {
		return 0, err
	}
	p := t.m.products[productID]
	if p.Quantity < qty {
		return 0, ErrOutOfStock
	}
	p.Quantity -= qty
	return p.Quantity, nil
}

func (t memTx) SetProductStatus(ctx context.Context, productID string, status ProductStatus) error {
	t.m.products[productID].Status = status
	return nil
}

func (t memTx) VariantPrice(ctx context.Context, productID, variantID string) (decimal.Decimal, error) {
	price, ok := t.m.variants[productID+"/"+variantID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return price, nil
}

func (t memTx) SnapshotCartItem(ctx context.Context, userID string, s cart.Snapshot) (*cart.Item, error) {
	key := userID + "|" + s.ProductID + "|" + s.VariantID + "|" + s.Size
	if it, ok := t.m.cartItems[key]; ok {
		it.Quantity += s.Quantity
		it.ReservationID = s.ReservationID
		cp := *it
		return &cp, nil
	}
	it := &cart.Item{ID: "item-" + s.ReservationID, CartID: "cart-" + userID, Snapshot: s}
	t.m.cartItems[key] = it
	cp := *it
	return &cp, nil
}
