package middleware

import (
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// CookieOptions controls the attributes of token cookies.
type CookieOptions struct {
	// Secure should be true whenever the service is reached over HTTPS.
	Secure bool
	Domain string
	// Now defaults to time.Now; Max-Age is computed from it.
	Now func() time.Time
}

// SetTokenCookies writes the access and refresh cookies for pair. Each cookie's Max-Age is
// the remaining lifetime of its token.
func SetTokenCookies(w http.ResponseWriter, pair *goSession.TokenPair, opts CookieOptions) {
	if pair == nil {
		return
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	at := now()

	http.SetCookie(w, tokenCookie(AccessCookieName, pair.AccessToken, maxAge(pair.AccessExpiresAt, at), opts))
	http.SetCookie(w, tokenCookie(RefreshCookieName, pair.RefreshToken, maxAge(pair.RefreshExpiresAt, at), opts))
}

// ClearTokenCookies expires both token cookies in the client.
func ClearTokenCookies(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, tokenCookie(AccessCookieName, "", -1, opts))
	http.SetCookie(w, tokenCookie(RefreshCookieName, "", -1, opts))
}

func tokenCookie(name, value string, maxAge int, opts CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func maxAge(expiresAt, now time.Time) int {
	seconds := int(expiresAt.Sub(now) / time.Second)
	if seconds <= 0 {
		return -1
	}
	return seconds
}
