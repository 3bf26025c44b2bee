package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
)

type CarrierStatusHandler interface {
	HandleCarrierStatus(ctx context.Context, u settlement.CarrierUpdate) error
}

type BalanceReader interface {
	AvailableBalance(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

type HoldReader interface {
	InHoldEarnings(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

type SettlementHandler struct {
	Carrier CarrierStatusHandler
	Ledger  BalanceReader
	Hold    HoldReader
	Log     *zap.Logger
}

type CarrierWebhookReq struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
}

type BalanceResp struct {
	SellerID         string `json:"seller_id"`
	AvailableBalance string `json:"available_balance"`
	InHold           string `json:"in_hold"`
}

func (h *SettlementHandler) Register(r chi.Router) {
	r.Post("/webhooks/carrier", h.carrierWebhook)
	r.With(requireUser).Get("/sellers/{id}/balance", h.balance)
}

func (h *SettlementHandler) carrierWebhook(w http.ResponseWriter, r *http.Request) {
	var req CarrierWebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	err := h.Carrier.HandleCarrierStatus(r.Context(), settlement.CarrierUpdate{
		OrderID:    req.OrderID,
		ShipmentID: req.ShipmentID,
		Status:     settlement.NormalizeShipmentStatus(req.Status),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// balance: seller hanya boleh lihat saldonya sendiri, admin boleh semua.
func (h *SettlementHandler) balance(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "id")
	if !isAdmin(r) && userID(r) != sellerID {
		writeJSON(w, http.StatusForbidden, errorResp{Error: ReasonForbidden})
		return
	}

	available, err := h.Ledger.AvailableBalance(r.Context(), sellerID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	hold, err := h.Hold.InHoldEarnings(r.Context(), sellerID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResp{
		SellerID:         sellerID,
		AvailableBalance: available.StringFixed(2),
		InHold:           hold.StringFixed(2),
	})
}
