package events

const (
	TopicProductLowStock   = "inventory.product.low_stock"
	TopicSellerModeChanged = "seller.mode.changed"
	TopicShipmentStatus    = "shipment.status"
)

// Partition key = id entitas (product/seller/order), supaya event satu entitas tetap berurutan.
func PartitionKey(id string) []byte { return []byte(id) }
