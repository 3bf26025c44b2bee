package redisx

import "time"

const (
	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache operational mode seller: seller_mode:{seller_id} -> "NORMAL" | "ISOLATED" | ...
	KeySellerMode = "seller_mode:%s"

	// Lock sweep per job: lock:job:{name}
	KeyJobLock = "lock:job:%s"
)

var (
	TTLDedup     = 48 * time.Hour
	TTLModeCache = time.Minute
)
