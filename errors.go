package goSession

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/store"
)

var (
	// ErrMalformed is returned for tokens that are not structurally valid goSession tokens.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature or algorithm does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned once the current time reaches the token's exp.
	ErrExpired = errors.New("token expired")
	// ErrWrongPurpose is returned when a token is presented to an operation for another purpose.
	ErrWrongPurpose = errors.New("wrong token purpose")
	// ErrRevoked is returned for access tokens on the denylist and redeemed purpose tokens.
	ErrRevoked = errors.New("token revoked")
	// ErrStaleOrReplayed is returned when a refresh token has no live record.
	ErrStaleOrReplayed = errors.New("refresh token stale or replayed")
	// ErrStoreUnavailable is returned when the credential store cannot answer.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrPurposeNotAllowed is returned when purpose-token helpers get access or refresh.
	ErrPurposeNotAllowed = errors.New("token purpose not allowed for this operation")
	// ErrInvalidSubject is returned for an empty subject.
	ErrInvalidSubject = errors.New("invalid subject")
)

// FailureKind tags every verification and lifecycle failure. Callers that need an exhaustive
// switch use [KindOf] instead of chains of errors.Is.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	FailureMalformed
	FailureInvalidSignature
	FailureExpired
	FailureWrongPurpose
	FailureRevoked
	FailureStaleOrReplayed
	FailureStoreUnavailable
)

var failureSentinels = [...]error{
	FailureNone:             nil,
	FailureMalformed:        ErrMalformed,
	FailureInvalidSignature: ErrInvalidSignature,
	FailureExpired:          ErrExpired,
	FailureWrongPurpose:     ErrWrongPurpose,
	FailureRevoked:          ErrRevoked,
	FailureStaleOrReplayed:  ErrStaleOrReplayed,
	FailureStoreUnavailable: ErrStoreUnavailable,
}

func (k FailureKind) String() string {
	switch k {
	case FailureMalformed:
		return "malformed"
	case FailureInvalidSignature:
		return "invalid_signature"
	case FailureExpired:
		return "expired"
	case FailureWrongPurpose:
		return "wrong_purpose"
	case FailureRevoked:
		return "revoked"
	case FailureStaleOrReplayed:
		return "stale_or_replayed"
	case FailureStoreUnavailable:
		return "store_unavailable"
	default:
		return "none"
	}
}

// Sentinel returns the package error that matches k, or nil for FailureNone.
func (k FailureKind) Sentinel() error {
	if int(k) >= len(failureSentinels) {
		return nil
	}
	return failureSentinels[k]
}

// Failure is the error type returned by Engine operations. Err carries the underlying cause
// (codec or store error) and is never shown to clients.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind.Sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind.Sentinel(), f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches the sentinel of the failure's kind, so errors.Is(err, ErrRevoked) works without
// the cause having to wrap it.
func (f *Failure) Is(target error) bool {
	sentinel := f.Kind.Sentinel()
	return sentinel != nil && target == sentinel
}

// KindOf returns the failure tag carried by err, or FailureNone.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	for kind := FailureMalformed; kind <= FailureStoreUnavailable; kind++ {
		if errors.Is(err, kind.Sentinel()) {
			return kind
		}
	}
	return FailureNone
}

func fail(op string, kind FailureKind, cause error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: cause}
}

// codecFailure maps a jwt.Codec error onto the failure taxonomy.
func codecFailure(op string, err error) *Failure {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return fail(op, FailureExpired, err)
	case errors.Is(err, jwt.ErrInvalidSignature):
		return fail(op, FailureInvalidSignature, err)
	case errors.Is(err, jwt.ErrWrongPurpose):
		return fail(op, FailureWrongPurpose, err)
	default:
		return fail(op, FailureMalformed, err)
	}
}

// storeFailure treats every store error as unavailability. Callers must fail closed.
func storeFailure(op string, err error) *Failure {
	if !errors.Is(err, store.ErrUnavailable) {
		err = fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return fail(op, FailureStoreUnavailable, err)
}
