package redisx

import "time"

const (
	// Checkout idempotency: idem:order:create:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart per user: cart:{user_id} -> hash product_id => qty
	KeyCart = "cart:%s"

	// Shipping provider lookups
	KeyWilayas  = "ship:%s:wilayas"
	KeyCommunes = "ship:%s:communes:%d"
	KeyCenters  = "ship:%s:centers:%d"
	KeyFees     = "ship:%s:fees:%d:%d"

	// Parcel booking claim per order: ship:booking:{order_id}
	KeyShipmentBooking = "ship:booking:%s"

	// Fixed window counters: rl:{scope}:{key}
	KeyRateLimit = "rl:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLCart        = 30 * 24 * time.Hour
	TTLLookup      = 24 * time.Hour
	TTLFees        = 12 * time.Hour
	TTLBooking     = 24 * time.Hour
)
