package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/directory"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/middleware/ginauth"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	Subject          string    `json:"subject"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newSessionResponse(pair *goSession.TokenPair) sessionResponse {
	return sessionResponse{
		Subject:          pair.Subject,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and password are required"})
		return
	}

	ctx := middleware.RequestContext(c.Request)
	ip := c.ClientIP()

	if h.throttle != nil {
		if err := h.throttle.Check(ctx, req.Identifier, ip); err != nil {
			h.throttleError(c, err)
			return
		}
	}

	user, found := h.users.Lookup(req.Identifier)
	if !h.checkPassword(user, found, req.Password) || !user.Active {
		if h.throttle != nil {
			if err := h.throttle.Fail(ctx, req.Identifier, ip); errors.Is(err, rate.ErrUnavailable) {
				h.throttleError(c, err)
				return
			}
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials or inactive account"})
		return
	}

	if h.throttle != nil {
		if err := h.throttle.Reset(ctx, req.Identifier, ip); err != nil {
			h.logger.Warn("login throttle reset failed", zap.String("subject", user.Subject), zap.Error(err))
		}
	}

	pair, err := h.sessions.IssueSession(ctx, user.Subject)
	if err != nil {
		h.fail(c, "login", err)
		return
	}

	middleware.SetTokenCookies(c.Writer, pair, h.cookies)
	c.JSON(http.StatusOK, newSessionResponse(pair))
}

// checkPassword runs exactly one Argon2 verification whether or not the user exists.
func (h *handler) checkPassword(user directory.User, found bool, password string) bool {
	encoded := user.PasswordHash
	if !found {
		if h.dummyHash == "" {
			return false
		}
		encoded = h.dummyHash
	}

	ok, err := h.passwords.Verify(password, encoded)
	if err != nil {
		h.logger.Error("stored password hash unreadable", zap.String("subject", user.Subject), zap.Error(err))
		return false
	}
	return ok && found
}

func (h *handler) refresh(c *gin.Context) {
	token, ok := middleware.RefreshToken(c.Request)
	if !ok {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
			token, ok = req.RefreshToken, true
		}
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	pair, err := h.sessions.Rotate(middleware.RequestContext(c.Request), token)
	if err != nil {
		if goSession.KindOf(err) != goSession.FailureStoreUnavailable {
			middleware.ClearTokenCookies(c.Writer, h.cookies)
		}
		h.fail(c, "refresh", err)
		return
	}

	middleware.SetTokenCookies(c.Writer, pair, h.cookies)
	c.JSON(http.StatusOK, newSessionResponse(pair))
}

func (h *handler) logout(c *gin.Context) {
	access, _ := middleware.AccessToken(c.Request)
	refresh, _ := middleware.RefreshToken(c.Request)

	if access != "" || refresh != "" {
		err := h.sessions.RevokeSession(middleware.RequestContext(c.Request), access, refresh)
		if errors.Is(err, goSession.ErrStoreUnavailable) {
			h.fail(c, "logout", err)
			return
		}
		if err != nil {
			// Unusable tokens need no revocation; the client still gets its cookies cleared.
			h.logger.Debug("logout with unusable token", zap.Error(err))
		}
	}

	middleware.ClearTokenCookies(c.Writer, h.cookies)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *handler) logoutAll(c *gin.Context) {
	subject, _ := ginauth.GetSubject(c)
	ctx := c.Request.Context()

	removed, err := h.sessions.RevokeAllForSubject(ctx, subject)
	if err != nil {
		h.fail(c, "logout_all", err)
		return
	}

	access, _ := middleware.AccessToken(c.Request)
	if err := h.sessions.RevokeSession(ctx, access, ""); err != nil {
		h.fail(c, "logout_all", err)
		return
	}

	middleware.ClearTokenCookies(c.Writer, h.cookies)
	c.JSON(http.StatusOK, gin.H{"refresh_revoked": removed})
}

func (h *handler) activate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.sessions.RedeemToken(middleware.RequestContext(c.Request), token, goSession.PurposeActivation)
	if err != nil {
		h.fail(c, "activate", err)
		return
	}

	if err := h.users.Activate(claims.Subject); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account activated"})
}

func (h *handler) me(c *gin.Context) {
	subject, _ := ginauth.GetSubject(c)
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

func (h *handler) healthz(c *gin.Context) {
	if err := h.sessions.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) throttleError(c *gin.Context, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}
	h.logger.Error("login throttle unavailable", zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
}

// fail maps engine errors: store outages are 503, token failures 401, anything else 500.
func (h *handler) fail(c *gin.Context, op string, err error) {
	kind := goSession.KindOf(err)
	switch kind {
	case goSession.FailureStoreUnavailable:
		h.logger.Error("credential store unavailable", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	case goSession.FailureNone:
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": kind.String()})
	}
}
