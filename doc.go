// Package goSession issues, verifies, rotates and revokes signed session credentials: short-
// lived access tokens, long-lived single-use refresh tokens, and single-purpose activation
// and reset tokens.
//
// Engine methods are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore] contract and the [Failure] taxonomy. Token encoding lives in jwt/,
// persistence in store/, HTTP enforcement in middleware/.
//
// # Lifecycle
//
// A refresh token is valid only while its record exists in the store. Rotate consumes the
// record atomically before issuing a replacement, so a refresh token works exactly once.
// Access tokens are stateless until revoked; RevokeSession adds their id to a denylist for
// exactly their remaining lifetime, after which the entry expires on its own.
//
// # What this package must NOT do
//
//   - Cache revocation state in process. Every VerifyAccess consults the store.
//   - Treat a store failure as "not revoked". Store errors surface as
//     FailureStoreUnavailable and the credential is rejected.
//   - Log or audit token values. Only token ids and subjects are recorded.
//
// # Performance contract
//
// VerifyAccess costs one HMAC verification and one store read. IssueSession and Rotate cost
// one store write each (Rotate one extra atomic take). RevokeAllForSubject scans every live
// refresh record and is intended for rare administrative use.
package goSession
