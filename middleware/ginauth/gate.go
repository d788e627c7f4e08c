// Package ginauth adapts the goSession request gate to gin.
package ginauth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/goSession/middleware"
)

// SubjectKey is the gin context key holding the verified subject.
const SubjectKey = "gosession.subject"

// Option set the gate options.
type Option func(*gateOptions)

type gateOptions struct {
	publicPrefixes []string
}

func defaultGateOptions() *gateOptions {
	return &gateOptions{publicPrefixes: middleware.DefaultPublicPrefixes}
}

func (o *gateOptions) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithPublicPrefixes replaces the allow-listed path prefixes.
func WithPublicPrefixes(prefixes ...string) Option {
	return func(o *gateOptions) {
		o.publicPrefixes = prefixes
	}
}

// Gate rejects requests without a valid access token, with the same token sources and
// status codes as middleware.Gate.
func Gate(verifier middleware.Verifier, opts ...Option) gin.HandlerFunc {
	o := defaultGateOptions()
	o.apply(opts...)

	return func(c *gin.Context) {
		if middleware.IsPublic(c.Request.URL.Path, o.publicPrefixes) {
			c.Next()
			return
		}

		token, ok := middleware.AccessToken(c.Request)
		if !ok || verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := middleware.RequestContext(c.Request)
		subject, err := verifier.VerifyAccess(ctx, token)
		if err != nil {
			status := middleware.StatusFor(err)
			msg := "unauthorized"
			if status == http.StatusServiceUnavailable {
				msg = "service unavailable"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(SubjectKey, subject)
		c.Request = c.Request.WithContext(middleware.WithSubject(ctx, subject))
		c.Next()
	}
}

// GetSubject get the verified subject from gin context.
func GetSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get(SubjectKey)
	if !exists {
		return "", false
	}
	s, ok := subject.(string)
	return s, ok && s != ""
}
