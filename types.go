package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Purpose is re-exported so callers of the root package need not import jwt.
type Purpose = jwt.Purpose

const (
	PurposeAccess     = jwt.PurposeAccess
	PurposeRefresh    = jwt.PurposeRefresh
	PurposeActivation = jwt.PurposeActivation
	PurposeReset      = jwt.PurposeReset
)

// TokenPair is returned by IssueSession and Rotate.
//
// The refresh token's jti has a matching live record in the credential store until it is
// rotated, revoked, or expires.
type TokenPair struct {
	Subject          string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssuedToken is a single purpose token returned by IssueToken.
type IssuedToken struct {
	Subject   string
	Purpose   Purpose
	Token     string
	ExpiresAt time.Time
}
