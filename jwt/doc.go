// Package jwt encodes and decodes the signed, typed, expiring tokens used by goSession.
//
// Every token carries a subject, a [Purpose], a random token id (jti), and whole-second
// issued-at and expiry timestamps. Tokens are HMAC-SHA256 signed with a single process-wide
// key. A token is only accepted by the operation whose purpose it was minted for.
//
// # Architecture boundaries
//
// This package is pure: it performs no I/O and keeps no state beyond its configuration.
// Revocation, rotation, and denylist checks belong to the Engine and the credential store.
//
// # What this package must NOT do
//
//   - Import goSession, store, or middleware.
//   - Collapse decode failures into a single error; callers branch on [ErrMalformed],
//     [ErrInvalidSignature], [ErrExpired], and [ErrWrongPurpose].
package jwt
