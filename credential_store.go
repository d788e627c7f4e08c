package goSession

import (
	"context"
	"time"
)

// CredentialStore is the persistence contract the Engine depends on. store.RedisStore and
// store.MemoryStore implement it.
//
// Implementations must be safe for concurrent use. TakeRefresh must be a single indivisible
// read-and-delete: of N concurrent callers with the same id, at most one sees ok == true.
// Every backend failure must surface as an error; the Engine maps it to
// FailureStoreUnavailable and fails closed.
type CredentialStore interface {
	// PutRefresh records that refresh token id belongs to subject for ttl.
	PutRefresh(ctx context.Context, id, subject string, ttl time.Duration) error
	// TakeRefresh consumes the record for id. ok is false when no live record exists.
	TakeRefresh(ctx context.Context, id string) (subject string, ok bool, err error)
	// DenyAccess denylists id for ttl. Idempotent; an existing entry's TTL is not extended.
	DenyAccess(ctx context.Context, id string, ttl time.Duration) error
	// DenyOnce denylists id only if absent and reports whether this call created the entry.
	DenyOnce(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// IsDenied reports whether id has a live denylist entry.
	IsDenied(ctx context.Context, id string) (bool, error)
	// DeleteRefreshBySubject removes every live refresh record owned by subject.
	DeleteRefreshBySubject(ctx context.Context, subject string) (int, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
