package domain

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// ==== Room Constants ====

// Room identifier prefixes. A room is a broadcast scope: a channel, a
// thread keyed by its parent message, or a single user's presence/DM scope.
const (
	RoomPrefixChannel = "channel:"
	RoomPrefixThread  = "thread:"
	RoomPrefixUser    = "user:"
)

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket upgrades (req/sec)
	DefaultRateLimitWS = 5
)
