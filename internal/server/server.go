// Package server wires the goSession engine into the demo HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/directory"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/middleware/ginauth"
)

// Sessions is the part of *goSession.Engine the handlers use.
type Sessions interface {
	IssueSession(ctx context.Context, subject string) (*goSession.TokenPair, error)
	VerifyAccess(ctx context.Context, token string) (string, error)
	Rotate(ctx context.Context, refreshToken string) (*goSession.TokenPair, error)
	RevokeSession(ctx context.Context, accessToken, refreshToken string) error
	RevokeAllForSubject(ctx context.Context, subject string) (int, error)
	RedeemToken(ctx context.Context, token string, purpose goSession.Purpose) (*jwt.Claims, error)
	Ping(ctx context.Context) error
}

// Users resolves login identifiers.
type Users interface {
	Lookup(identifier string) (directory.User, bool)
	Activate(subject string) error
}

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

// Throttle limits failed logins. A nil Throttle disables throttling.
type Throttle interface {
	Check(ctx context.Context, identifier, ip string) error
	Fail(ctx context.Context, identifier, ip string) error
	Reset(ctx context.Context, identifier, ip string) error
}

// Options configures [New].
type Options struct {
	Sessions  Sessions
	Users     Users
	Passwords PasswordVerifier
	Throttle  Throttle
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Cookies middleware.CookieOptions
	Logger  *zap.Logger
	// DummyHash is verified against when an identifier is unknown, so both paths cost one
	// Argon2 evaluation.
	DummyHash string
}

type handler struct {
	sessions  Sessions
	users     Users
	passwords PasswordVerifier
	throttle  Throttle
	cookies   middleware.CookieOptions
	logger    *zap.Logger
	dummyHash string
}

// New returns the demo API router.
func New(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handler{
		sessions:  opts.Sessions,
		users:     opts.Users,
		passwords: opts.Passwords,
		throttle:  opts.Throttle,
		cookies:   opts.Cookies,
		logger:    logger,
		dummyHash: opts.DummyHash,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	auth := r.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", h.logout)
	auth.GET("/activate", h.activate)

	// Every route in this group requires an access token, including those under /auth/.
	gated := r.Group("/", ginauth.Gate(opts.Sessions, ginauth.WithPublicPrefixes()))
	gated.POST("/auth/logout-all", h.logoutAll)
	gated.GET("/me", h.me)

	r.GET("/healthz", h.healthz)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
