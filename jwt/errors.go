package jwt

import "errors"

var (
	// ErrMalformed is returned when the token structure or its claims are invalid.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature, algorithm, or key id does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned once the current second reaches the token expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongPurpose is returned when a valid token is presented to an operation of another purpose.
	ErrWrongPurpose = errors.New("wrong token purpose")
)
