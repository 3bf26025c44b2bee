package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-marketplace-core/internal/cart"
	"github.com/ariefcatur/go-marketplace-core/internal/inventory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type ReservationService interface {
	Reserve(ctx context.Context, productID, userID string, qty int) (*inventory.Reservation, error)
	ReserveForCart(ctx context.Context, in inventory.CartReserveInput) (*inventory.Reservation, *cart.Item, error)
	ConvertReservation(ctx context.Context, reservationID, userID string, isAdmin bool) (*inventory.Reservation, error)
	ConvertReservationsForOrder(ctx context.Context, orderID, userID string) ([]inventory.Reservation, error)
}

type ReservationsHandler struct {
	Service ReservationService
	Log     *zap.Logger
}

type ReserveReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Cart      bool   `json:"cart"`
	VariantID string `json:"variant_id,omitempty"`
	Size      string `json:"size,omitempty"`
}

type ReservationResp struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CartItemResp struct {
	ID            string    `json:"id"`
	CartID        string    `json:"cart_id"`
	ProductID     string    `json:"product_id"`
	VariantID     string    `json:"variant_id,omitempty"`
	Size          string    `json:"size,omitempty"`
	ProductName   string    `json:"product_name"`
	UnitPrice     string    `json:"unit_price"`
	Quantity      int       `json:"quantity"`
	ReservationID string    `json:"reservation_id"`
	SnapshotAt    time.Time `json:"snapshot_at"`
}

type ReserveResp struct {
	Reservation ReservationResp `json:"reservation"`
	CartItem    *CartItemResp   `json:"cart_item,omitempty"`
}

func (h *ReservationsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/reservations", h.reserve)
		r.Post("/reservations/{id}/convert", h.convert)
		r.Post("/orders/{id}/convert-reservations", h.convertOrder)
	})
}

func toReservationResp(r inventory.Reservation) ReservationResp {
	return ReservationResp{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt,
	}
}

func (h *ReservationsHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		badRequest(w, "product_id and positive quantity required")
		return
	}

	uid := userID(r)
	if !req.Cart && req.VariantID == "" && req.Size == "" {
		res, err := h.Service.Reserve(r.Context(), req.ProductID, uid, req.Quantity)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, ReserveResp{Reservation: toReservationResp(*res)})
		return
	}

	res, item, err := h.Service.ReserveForCart(r.Context(), inventory.CartReserveInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Size:      req.Size,
		UserID:    uid,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	out := ReserveResp{Reservation: toReservationResp(*res)}
	if item != nil {
		out.CartItem = &CartItemResp{
			ID:            item.ID,
			CartID:        item.CartID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Size:          item.Size,
			ProductName:   item.ProductName,
			UnitPrice:     item.UnitPrice.StringFixed(2),
			Quantity:      item.Quantity,
			ReservationID: item.ReservationID,
			SnapshotAt:    item.SnapshotAt,
		}
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ReservationsHandler) convert(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.ConvertReservation(r.Context(), chi.URLParam(r, "id"), userID(r), isAdmin(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResp(*res))
}

func (h *ReservationsHandler) convertOrder(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ConvertReservationsForOrder(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	out := make([]ReservationResp, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationResp(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": chi.URLParam(r, "id"), "converted": out})
}
