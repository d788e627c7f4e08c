package goSession

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"go.uber.org/zap"
)

// singleUse reports whether purpose is handled by the purpose-token helpers. Access and
// refresh tokens have their own lifecycle and are rejected here.
func singleUse(purpose Purpose) bool {
	return purpose == jwt.PurposeActivation || purpose == jwt.PurposeReset
}

// IssueToken mints an activation or reset token for subject with the configured TTL.
// Nothing is written to the store; the token is valid until it expires or is redeemed.
func (e *Engine) IssueToken(ctx context.Context, subject string, purpose Purpose) (*IssuedToken, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !singleUse(purpose) {
		return nil, ErrPurposeNotAllowed
	}
	if subject == "" {
		return nil, ErrInvalidSubject
	}

	tok, err := e.codec.Encode(subject, purpose, e.config.TTL.For(purpose))
	if err != nil {
		return nil, fmt.Errorf("%s: encode %s token: %w", opIssueToken, purpose, err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, subject, tok.ID, nil, purposeMetadata(purpose))

	return &IssuedToken{
		Subject:   subject,
		Purpose:   purpose,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// VerifyToken checks an activation or reset token without consuming it. A redeemed token
// fails with Revoked.
func (e *Engine) VerifyToken(ctx context.Context, token string, purpose Purpose) (*jwt.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !singleUse(purpose) {
		return nil, ErrPurposeNotAllowed
	}
	return e.verify(ctx, opVerifyToken, token, purpose)
}

// RedeemToken verifies an activation or reset token and marks it used for the rest of its
// lifetime. Exactly one of any number of concurrent redemptions succeeds; the others get
// Revoked.
func (e *Engine) RedeemToken(ctx context.Context, token string, purpose Purpose) (*jwt.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !singleUse(purpose) {
		return nil, ErrPurposeNotAllowed
	}

	claims, err := e.codec.Decode(token, purpose)
	if err != nil {
		failure := codecFailure(opRedeemToken, err)
		e.emitAudit(ctx, auditEventTokenRedeemed, false, "", "", failure, purposeMetadata(purpose))
		return nil, failure
	}
	tokenID := claims.TokenID()

	// The marker must outlive the token; round sub-millisecond remainders up.
	ttl := claims.Remaining(e.now()).Truncate(time.Millisecond)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	first, err := e.store.DenyOnce(ctx, tokenID, ttl)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("redeem marker write failed", zap.String("token_id", tokenID), zap.Error(err))
		failure := storeFailure(opRedeemToken, err)
		e.emitAudit(ctx, auditEventTokenRedeemed, false, claims.Subject, tokenID, failure, purposeMetadata(purpose))
		return nil, failure
	}
	if !first {
		e.metricInc(MetricTokenReplayRejected)
		failure := fail(opRedeemToken, FailureRevoked, nil)
		e.emitAudit(ctx, auditEventTokenRedeemed, false, claims.Subject, tokenID, failure, purposeMetadata(purpose))
		return nil, failure
	}

	e.metricInc(MetricTokenRedeemed)
	e.emitAudit(ctx, auditEventTokenRedeemed, true, claims.Subject, tokenID, nil, purposeMetadata(purpose))
	return claims, nil
}

func purposeMetadata(purpose Purpose) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	}
}
