package payout

import (
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"time"
)

var (
	ErrNotFound            = errors.New("payout not found")
	ErrInvalidAmount       = errors.New("payout amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid payout status transition")
)

// InsufficientBalanceError membawa saldo tersedia supaya caller bisa menampilkannya.
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

type Payout struct {
	ID        string
	SellerID  string
	Amount    decimal.Decimal
	Status    Status
	CreatedBy string
	CreatedAt time.Time
	PaidAt    *time.Time
}

type Event struct {
	ID        string
	PayoutID  string
	From      Status
	To        Status
	ChangedBy string
	CreatedAt time.Time
}

type BatchResult struct {
	Payout         *Payout
	Available      decimal.Decimal
	PlatformMargin decimal.Decimal
	SettledCredits int64
}
