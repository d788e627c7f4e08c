package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose restricts which operation may accept a token.
type Purpose string

const (
	PurposeAccess     Purpose = "access"
	PurposeRefresh    Purpose = "refresh"
	PurposeActivation Purpose = "activation"
	PurposeReset      Purpose = "reset"
)

// Valid reports whether p is one of the four known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeActivation, PurposeReset:
		return true
	default:
		return false
	}
}

// ParsePurpose converts a string into a [Purpose], rejecting unknown values.
func ParsePurpose(s string) (Purpose, bool) {
	p := Purpose(s)
	return p, p.Valid()
}

// Claims is the signed payload of every goSession token.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.ID
}

// ExpiresAtTime returns the expiry as a time.Time, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining returns how long the token stays valid after now, never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	exp := c.ExpiresAtTime()
	if exp.IsZero() || !now.Before(exp) {
		return 0
	}
	return exp.Sub(now)
}

// Token is the result of encoding a claim set.
type Token struct {
	Value     string
	ID        string
	Subject   string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}
