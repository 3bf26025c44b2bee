package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-marketplace-core/internal/payout"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type PayoutService interface {
	CreateBatch(ctx context.Context, sellerID string, amount decimal.Decimal, createdBy string) (*payout.BatchResult, error)
	UpdateStatus(ctx context.Context, payoutID string, to payout.Status, changedBy string) (*payout.Payout, error)
}

type PayoutsHandler struct {
	Service PayoutService
	Log     *zap.Logger
}

type CreatePayoutReq struct {
	SellerID string `json:"seller_id"`
	Amount   string `json:"amount"` // string desimal, mis. "120.50"
}

type UpdatePayoutStatusReq struct {
	Status string `json:"status"`
}

type PayoutResp struct {
	ID        string     `json:"id"`
	SellerID  string     `json:"seller_id"`
	Amount    string     `json:"amount"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type CreatePayoutResp struct {
	Payout         PayoutResp `json:"payout"`
	Available      string     `json:"available"`
	PlatformMargin string     `json:"platform_margin"`
	SettledCredits int64      `json:"settled_credits"`
}

func (h *PayoutsHandler) Register(r chi.Router) {
	r.Route("/admin/payouts", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/", h.create)
		r.Patch("/{id}/status", h.updateStatus)
	})
}

func toPayoutResp(p *payout.Payout) PayoutResp {
	return PayoutResp{
		ID:        p.ID,
		SellerID:  p.SellerID,
		Amount:    p.Amount.StringFixed(2),
		Status:    string(p.Status),
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}
}

func (h *PayoutsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.SellerID == "" {
		badRequest(w, "seller_id required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, "amount must be a decimal string")
		return
	}

	res, err := h.Service.CreateBatch(r.Context(), req.SellerID, amount, userID(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatePayoutResp{
		Payout:         toPayoutResp(res.Payout),
		Available:      res.Available.StringFixed(2),
		PlatformMargin: res.PlatformMargin.StringFixed(2),
		SettledCredits: res.SettledCredits,
	})
}

func (h *PayoutsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdatePayoutStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	to, ok := payout.ParseStatus(req.Status)
	if !ok {
		badRequest(w, "unknown payout status")
		return
	}

	p, err := h.Service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to, userID(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResp(p))
}
