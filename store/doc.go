// Package store provides the credential stores behind goSession: outstanding refresh-token
// records (token id -> subject) and the access-token denylist, both TTL-bound.
//
// # Implementations
//
//   - [RedisStore]: go-redis backed; the only store that is shared across processes.
//   - [MemoryStore]: single-process map; suitable for tests and local development.
//
// Both satisfy goSession.CredentialStore structurally.
//
// # Atomicity
//
// TakeRefresh is one indivisible read-and-delete (Redis GETDEL, or a single mutex section
// in memory). Two concurrent callers presenting the same refresh token id can never both
// observe the subject. Every other operation is independent per key.
//
// # Failure semantics
//
// Backend failures, including timeouts, wrap [ErrUnavailable]. Callers must treat them as
// "unknown", never as "not denied".
//
// # What this package must NOT do
//
//   - Import goSession or jwt; it stores opaque ids and subjects only.
//   - Cache denylist state in process for the Redis implementation.
package store
