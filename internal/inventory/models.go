package inventory

import (
	"errors"
	"github.com/shopspring/decimal"
	"time"
)

type ProductStatus string

const (
	ProductLive       ProductStatus = "LIVE"
	ProductOutOfStock ProductStatus = "OUT_OF_STOCK"
	ProductInactive   ProductStatus = "INACTIVE"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationConverted ReservationStatus = "CONVERTED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Terminal: CONVERTED dan EXPIRED tidak pernah kembali ke ACTIVE.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationConverted || s == ReservationExpired
}

var (
	ErrNotFound            = errors.New("not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrExpired             = errors.New("reservation expired")
	ErrForbidden           = errors.New("forbidden")
	ErrReservationMismatch = errors.New("reservation mismatch")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrProductInactive     = errors.New("product inactive")
)

type Product struct {
	ID       string
	SellerID string
	Name     string
	Price    decimal.Decimal
	Quantity int
	Status   ProductStatus
}

type Reservation struct {
	ID        string
	ProductID string
	UserID    string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Live: ACTIVE dan belum lewat expires_at. Reservasi yang expired tapi belum disapu tetap tidak live.
func (r Reservation) Live(now time.Time) bool {
	return r.Status == ReservationActive && r.ExpiresAt.After(now)
}

type Order struct {
	ID     string
	UserID string
	Lines  []OrderLine
}

type OrderLine struct {
	ProductID string
	SellerID  string
	Quantity  int
	LineTotal decimal.Decimal
}

type LowStockAlert struct {
	ProductID string
	SellerID  string
	Remaining int
	Threshold int
}

// CartReserveInput: reservasi dari alur cart, sekaligus snapshot item cart.
type CartReserveInput struct {
	ProductID string
	VariantID string
	Size      string
	UserID    string
	Quantity  int
}
