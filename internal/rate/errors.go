package rate

import "errors"

var (
	// ErrRateLimited is returned when a subject has no attempts left in the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
