package events

import (
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"time"
)

const (
	EventProductLowStock       = "ProductLowStock"
	EventSellerModeChanged     = "SellerModeChanged"
	EventShipmentStatusChanged = "ShipmentStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "marketplace-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // product_id / seller_id / order_id
	Payload       json.RawMessage `json:"payload"`
}

// New membungkus payload ke envelope v1.
func New(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- Payload tipe per event ----

type ProductLowStockPayload struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Remaining int    `json:"remaining"`
	Threshold int    `json:"threshold"`
}

type SellerModeChangedPayload struct {
	SellerID            string `json:"seller_id"`
	From                string `json:"from"`
	To                  string `json:"to"`
	DeactivatedListings int64  `json:"deactivated_listings"`
}

// ShipmentStatusChangedPayload datang dari integrasi carrier (status mentah, belum dinormalisasi).
type ShipmentStatusChangedPayload struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
}
