package store

import "errors"

var (
	// ErrUnavailable wraps every backend failure, including operation timeouts.
	ErrUnavailable = errors.New("credential store unavailable")
	// ErrInvalidRecord is returned for empty ids, empty subjects, or non-positive refresh TTLs.
	ErrInvalidRecord = errors.New("invalid credential record")
)
