package settlement

import "strings"

type Status string

const (
	StatusNone       Status = "" // NULL di DB: belum masuk alur settlement
	StatusPending    Status = "PENDING"
	StatusEligible   Status = "ELIGIBLE"
	StatusRTOBlocked Status = "RTO_BLOCKED"
)

var validNext = map[Status]map[Status]bool{
	StatusNone:       {StatusPending: true, StatusRTOBlocked: true},
	StatusPending:    {StatusEligible: true, StatusRTOBlocked: true},
	StatusEligible:   {},
	StatusRTOBlocked: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type ShipmentStatus string

const (
	ShipmentInTransit    ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered    ShipmentStatus = "DELIVERED"
	ShipmentRTOInitiated ShipmentStatus = "RTO_INITIATED"
	ShipmentRTODelivered ShipmentStatus = "RTO_DELIVERED"
)

// Terminal: status akhir dari carrier; update berikutnya untuk shipment itu diabaikan.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentDelivered || s == ShipmentRTODelivered
}

// NormalizeShipmentStatus memetakan variasi status carrier ke status internal.
func NormalizeShipmentStatus(raw string) ShipmentStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "DELIVERED":
		return ShipmentDelivered
	case "RTO_DELIVERED", "RETURNED_TO_ORIGIN", "RETURNED", "RTO_COMPLETED":
		return ShipmentRTODelivered
	case "RTO_INITIATED", "RTO", "RETURN_TO_ORIGIN":
		return ShipmentRTOInitiated
	case "":
		return ""
	default:
		return ShipmentStatus(s)
	}
}
