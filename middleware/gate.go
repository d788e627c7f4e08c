package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"go.uber.org/zap"
)

const (
	// AccessCookieName carries the access token.
	AccessCookieName = "access_token"
	// RefreshCookieName carries the refresh token.
	RefreshCookieName = "refresh_token"
)

// DefaultPublicPrefixes are served without a token when Options.PublicPrefixes is nil.
var DefaultPublicPrefixes = []string{
	"/auth/",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/healthz",
	"/metrics",
}

// Verifier is the one capability the gate needs. *goSession.Engine satisfies it.
type Verifier interface {
	VerifyAccess(ctx context.Context, token string) (string, error)
}

// Options configures [Gate].
type Options struct {
	// PublicPrefixes bypass verification. nil selects DefaultPublicPrefixes; an empty,
	// non-nil slice protects every path.
	PublicPrefixes []string
	// Logger receives one Debug entry per rejection. Defaults to zap.NewNop.
	Logger *zap.Logger
}

type subjectContextKey struct{}

// SubjectFromContext returns the subject attached by [Gate].
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok && subject != ""
}

// WithSubject attaches subject to ctx the same way [Gate] does.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// Gate returns middleware that rejects requests without a valid access token.
func Gate(verifier Verifier, opts Options) func(http.Handler) http.Handler {
	prefixes := opts.PublicPrefixes
	if prefixes == nil {
		prefixes = DefaultPublicPrefixes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("reason", "missing_token"))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := RequestContext(r)
			subject, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				status := StatusFor(err)
				logger.Debug("request rejected",
					zap.String("path", r.URL.Path),
					zap.String("reason", goSession.KindOf(err).String()),
					zap.Int("status", status),
				)
				http.Error(w, rejectionMessage(status), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(ctx, subject)))
		})
	}
}

// StatusFor maps a verification error to the HTTP status the gate responds with.
func StatusFor(err error) int {
	if goSession.KindOf(err) == goSession.FailureStoreUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

func rejectionMessage(status int) string {
	if status == http.StatusServiceUnavailable {
		return "service unavailable"
	}
	return "unauthorized"
}

// IsPublic reports whether path starts with one of prefixes.
func IsPublic(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AccessToken returns the access token from the cookie, falling back to the bearer header.
func AccessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// RefreshToken returns the refresh token cookie.
func RefreshToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// RequestContext returns r's context annotated with client IP and User-Agent for audit.
func RequestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = goSession.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = goSession.WithUserAgent(ctx, ua)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
