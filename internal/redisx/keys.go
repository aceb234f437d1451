package redisx

import "time"

const (
	// Search generation counter, bumped on any stock or catalog change.
	KeySearchGen = "search:gen"

	// Cached search result: search:{gen}:{lat}:{lng}:{km}:{text} -> JSON []ProductWithShop
	// Floats are written exactly; text goes last since it may contain ':'.
	KeySearch = "search:%d:%s:%s:%s:%s"

	// Idempotent booking: idem:booking:{user_id}:{key} -> booking id ("0" while in flight)
	KeyIdemBooking = "idem:booking:%d:%s"

	// Rate limit bucket: rate:{scope}:{ip}
	KeyRateLimit = "rate:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Booking counters per shop: hash shop_stats:{shop_id}
	KeyShopStats = "shop_stats:%d"
)

var (
	// TTLIdemInFlight bounds how long a crashed or unfinished request blocks
	// retries with the same key.
	TTLIdemInFlight = 30 * time.Second
	TTLIdempotency  = 24 * time.Hour
	TTLDedup        = 48 * time.Hour
)
