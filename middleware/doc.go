// Package middleware enforces goSession access tokens on net/http handlers.
//
// # Gate
//
// [Gate] lets allow-listed path prefixes through untouched. Every other request must carry
// an access token, read from the access_token cookie first and the Authorization bearer
// header second. The token is checked with [Verifier.VerifyAccess]; on success the subject is
// attached to the request context ([SubjectFromContext]).
//
// Rejections happen before the wrapped handler runs:
//
//   - 401 "unauthorized" for a missing token and for every token failure. The response
//     never says which check failed.
//   - 503 "service unavailable" when the credential store cannot answer. The request is
//     still denied; the status only tells clients the failure is retryable.
//
// # Cookies
//
// [SetTokenCookies] and [ClearTokenCookies] carry a goSession.TokenPair as HttpOnly,
// SameSite=Lax cookies scoped to "/".
//
// # What this package must NOT do
//
//   - Parse tokens or access the credential store (delegates to the Verifier).
//   - Mutate shared state on rejection.
package middleware
