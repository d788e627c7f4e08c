package rate

import "errors"

var (
	// ErrRateLimited means the caller must wait for the window to expire.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps Redis failures. Callers should fail closed.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
