package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/ariefcatur/go-marketplace-core/internal/inventory"
	"github.com/ariefcatur/go-marketplace-core/internal/payout"
	"github.com/ariefcatur/go-marketplace-core/internal/sellermode"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"go.uber.org/zap"
	"net/http"
)

// Reason string stabil untuk client; jangan diganti tanpa versi API baru.
const (
	ReasonInvalidRequest      = "InvalidRequest"
	ReasonNotFound            = "NotFound"
	ReasonForbidden           = "Forbidden"
	ReasonOutOfStock          = "OutOfStock"
	ReasonExpired             = "Expired"
	ReasonReservationMismatch = "ReservationMismatch"
	ReasonProductInactive     = "ProductInactive"
	ReasonSellerIsolated      = "SellerIsolated"
	ReasonDailyOrderCap       = "DailyOrderCap"
	ReasonOrderValueTooHigh   = "OrderValueTooHigh"
	ReasonInsufficientBalance = "InsufficientBalance"
	ReasonInvalidTransition   = "InvalidTransition"
	ReasonInternal            = "Internal"
)

type errorResp struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Available string `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: ReasonInvalidRequest, Message: msg})
}

var errorTable = []struct {
	target error
	code   int
	reason string
}{
	{inventory.ErrNotFound, http.StatusNotFound, ReasonNotFound},
	{settlement.ErrNotFound, http.StatusNotFound, ReasonNotFound},
	{payout.ErrNotFound, http.StatusNotFound, ReasonNotFound},
	{inventory.ErrForbidden, http.StatusForbidden, ReasonForbidden},
	{inventory.ErrOutOfStock, http.StatusConflict, ReasonOutOfStock},
	{inventory.ErrExpired, http.StatusConflict, ReasonExpired},
	{inventory.ErrReservationMismatch, http.StatusConflict, ReasonReservationMismatch},
	{inventory.ErrProductInactive, http.StatusConflict, ReasonProductInactive},
	{sellermode.ErrSellerIsolated, http.StatusConflict, ReasonSellerIsolated},
	{sellermode.ErrDailyOrderCap, http.StatusConflict, ReasonDailyOrderCap},
	{sellermode.ErrOrderValueTooHigh, http.StatusConflict, ReasonOrderValueTooHigh},
	{payout.ErrInsufficientBalance, http.StatusConflict, ReasonInsufficientBalance},
	{payout.ErrInvalidTransition, http.StatusConflict, ReasonInvalidTransition},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest, ReasonInvalidRequest},
	{payout.ErrInvalidAmount, http.StatusBadRequest, ReasonInvalidRequest},
	{settlement.ErrInvalidUpdate, http.StatusBadRequest, ReasonInvalidRequest},
	{cart.ErrInvalidSnapshot, http.StatusBadRequest, ReasonInvalidRequest},
}

// writeError memetakan error domain ke status + reason. Error tak dikenal jadi 500
// dan detailnya hanya masuk log.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, e := range errorTable {
		if !errors.Is(err, e.target) {
			continue
		}
		resp := errorResp{Error: e.reason, Message: err.Error()}
		var ibe *payout.InsufficientBalanceError
		if errors.As(err, &ibe) {
			resp.Available = ibe.Available.StringFixed(2)
		}
		writeJSON(w, e.code, resp)
		return
	}
	log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResp{Error: ReasonInternal})
}
