package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"go.uber.org/zap"
)

const (
	opIssueSession = "issue_session"
	opVerifyAccess = "verify_access"
	opRotate       = "rotate"
	opRevoke       = "revoke_session"
	opRevokeAll    = "revoke_all"
	opIssueToken   = "issue_token"
	opVerifyToken  = "verify_token"
	opRedeemToken  = "redeem_token"
	opPing         = "ping"
)

// Engine is the token lifecycle manager. It issues access/refresh pairs, verifies access
// tokens against the denylist, rotates refresh tokens exactly once, and revokes sessions.
//
// Engine holds no per-token state in process; every lifecycle decision is made against the
// credential store, so any number of Engines may share one store. Methods are safe for
// concurrent use.
type Engine struct {
	config  Config
	codec   *jwt.Codec
	store   CredentialStore
	logger  *zap.Logger
	now     func() time.Time
	audit   *auditDispatcher
	metrics *Metrics
}

// Close drains and stops the audit dispatcher. The credential store is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.codec == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}

// IssueSession mints an access/refresh pair for subject and records the refresh token.
//
// If the refresh record cannot be written, no tokens are returned and the error carries
// FailureStoreUnavailable.
//
//	Performance: 2 HMAC signatures, 1 store write.
func (e *Engine) IssueSession(ctx context.Context, subject string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, ErrInvalidSubject
	}

	pair, err := e.issuePair(ctx, opIssueSession, subject)
	if err != nil {
		e.metricInc(MetricSessionIssueFailure)
		e.emitAudit(ctx, auditEventSessionIssued, false, subject, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, subject, "", nil, nil)
	return pair, nil
}

func (e *Engine) issuePair(ctx context.Context, op, subject string) (*TokenPair, error) {
	access, err := e.codec.Encode(subject, jwt.PurposeAccess, e.config.TTL.Access)
	if err != nil {
		return nil, fmt.Errorf("%s: encode access token: %w", op, err)
	}
	refresh, err := e.codec.Encode(subject, jwt.PurposeRefresh, e.config.TTL.Refresh)
	if err != nil {
		return nil, fmt.Errorf("%s: encode refresh token: %w", op, err)
	}

	// The record lives exactly as long as the token it backs.
	ttl := refresh.ExpiresAt.Sub(e.now())
	if ttl <= 0 {
		ttl = e.config.TTL.Refresh
	}
	if err := e.store.PutRefresh(ctx, refresh.ID, subject, ttl); err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("refresh record write failed",
			zap.String("op", op),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return nil, storeFailure(op, err)
	}

	return &TokenPair{
		Subject:          subject,
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// VerifyAccess checks an access token and returns its subject.
//
// Failures, in check order: Malformed, InvalidSignature, Expired, WrongPurpose (from the
// codec), then Revoked when the token id is denylisted. A store error yields
// StoreUnavailable; the token is never treated as valid when the denylist cannot answer.
//
//	Performance: 1 HMAC verification, 1 store read.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, err := e.verify(ctx, opVerifyAccess, token, jwt.PurposeAccess)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		if KindOf(err) == FailureRevoked {
			e.metricInc(MetricVerifyRevoked)
		}
		e.emitAudit(ctx, auditEventAccessRejected, false, "", "", err, nil)
		return "", err
	}

	e.metricInc(MetricVerifySuccess)
	return claims.Subject, nil
}

// verify decodes token for purpose and consults the denylist.
func (e *Engine) verify(ctx context.Context, op, token string, purpose jwt.Purpose) (*jwt.Claims, error) {
	claims, err := e.codec.Decode(token, purpose)
	if err != nil {
		return nil, codecFailure(op, err)
	}

	denied, err := e.store.IsDenied(ctx, claims.TokenID())
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("denylist lookup failed",
			zap.String("op", op),
			zap.String("token_id", claims.TokenID()),
			zap.Error(err),
		)
		return nil, storeFailure(op, err)
	}
	if denied {
		return nil, fail(op, FailureRevoked, nil)
	}

	return claims, nil
}

// Rotate consumes a refresh token and returns a new pair for the stored subject.
//
// The refresh record is taken atomically, so of any number of concurrent Rotate calls with
// the same token exactly one succeeds; the rest, and every later call, get
// StaleOrReplayed. If the new record cannot be written after the old one was consumed, the
// caller gets StoreUnavailable and must log in again.
//
//	Performance: 1 HMAC verification, 2 HMAC signatures, 2 store round trips.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Decode(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		failure := codecFailure(opRotate, err)
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRefreshRotated, false, "", "", failure, nil)
		return nil, failure
	}
	tokenID := claims.TokenID()

	subject, ok, err := e.store.TakeRefresh(ctx, tokenID)
	if err != nil {
		e.metricInc(MetricRotateFailure)
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("refresh record take failed", zap.String("token_id", tokenID), zap.Error(err))
		failure := storeFailure(opRotate, err)
		e.emitAudit(ctx, auditEventRefreshRotated, false, claims.Subject, tokenID, failure, nil)
		return nil, failure
	}
	if !ok {
		e.metricInc(MetricRotateFailure)
		e.metricInc(MetricReplayDetected)
		e.logger.Warn("refresh token replay or stale record",
			zap.String("subject", claims.Subject),
			zap.String("token_id", tokenID),
		)
		failure := fail(opRotate, FailureStaleOrReplayed, nil)
		e.emitAudit(ctx, auditEventRefreshReplayDetected, false, claims.Subject, tokenID, failure, nil)
		return nil, failure
	}
	if subject != claims.Subject {
		e.logger.Warn("refresh record subject differs from token subject",
			zap.String("token_id", tokenID),
			zap.String("token_subject", claims.Subject),
			zap.String("record_subject", subject),
		)
	}

	pair, err := e.issuePair(ctx, opRotate, subject)
	if err != nil {
		e.metricInc(MetricRotateFailure)
		e.logger.Error("refresh consumed but replacement not issued",
			zap.String("subject", subject),
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventRefreshRotated, false, subject, tokenID, err, nil)
		return nil, err
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRefreshRotated, true, subject, tokenID, nil, nil)
	return pair, nil
}

// RevokeSession revokes whichever of accessToken and refreshToken are non-empty.
//
// The access token is denylisted for exactly its remaining lifetime; the refresh record is
// deleted. Each credential is processed even if the other fails, and the failures are
// returned joined. Already-expired tokens and refresh tokens with no live record are
// treated as already revoked.
func (e *Engine) RevokeSession(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	var errs []error
	var subject string
	revokedAccess, revokedRefresh := false, false

	if accessToken != "" {
		claims, err := e.codec.Decode(accessToken, jwt.PurposeAccess)
		switch {
		case errors.Is(err, jwt.ErrExpired):
		case err != nil:
			errs = append(errs, codecFailure(opRevoke, err))
		default:
			subject = claims.Subject
			if err := e.denyForRemaining(ctx, claims); err != nil {
				errs = append(errs, err)
			} else {
				revokedAccess = true
			}
		}
	}

	if refreshToken != "" {
		claims, err := e.codec.Decode(refreshToken, jwt.PurposeRefresh)
		switch {
		case errors.Is(err, jwt.ErrExpired):
		case err != nil:
			errs = append(errs, codecFailure(opRevoke, err))
		default:
			if subject == "" {
				subject = claims.Subject
			}
			if _, _, err := e.store.TakeRefresh(ctx, claims.TokenID()); err != nil {
				e.metricInc(MetricStoreUnavailable)
				errs = append(errs, storeFailure(opRevoke, err))
			} else {
				revokedRefresh = true
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		e.metricInc(MetricRevokeFailure)
		e.logger.Warn("session revocation incomplete", zap.String("subject", subject), zap.Error(err))
	} else {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventSessionRevoked, err == nil, subject, "", err, func() map[string]string {
		return map[string]string{
			"access_revoked":  boolString(revokedAccess),
			"refresh_revoked": boolString(revokedRefresh),
		}
	})
	return err
}

// denyForRemaining denylists the token for its remaining lifetime, truncated to whole
// milliseconds. A token with under a millisecond left expires before a deny entry could
// matter, so nothing is written.
func (e *Engine) denyForRemaining(ctx context.Context, claims *jwt.Claims) error {
	ttl := claims.Remaining(e.now()).Truncate(time.Millisecond)
	if ttl <= 0 {
		return nil
	}
	if err := e.store.DenyAccess(ctx, claims.TokenID(), ttl); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return storeFailure(opRevoke, err)
	}
	return nil
}

// RevokeAllForSubject deletes every outstanding refresh record of subject and returns how
// many were removed. Access tokens already issued stay valid until they expire; callers that
// need them gone immediately must also RevokeSession the presented access token.
//
// SCALE NOTE: cost is proportional to the number of live refresh records across all
// subjects (see store.RedisStore.DeleteRefreshBySubject).
func (e *Engine) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if subject == "" {
		return 0, ErrInvalidSubject
	}

	removed, err := e.store.DeleteRefreshBySubject(ctx, subject)
	e.metricInc(MetricSubjectRevoked)
	if removed > 0 {
		e.metrics.Add(MetricRefreshRecordsPurged, uint64(removed))
	}
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		failure := storeFailure(opRevokeAll, err)
		e.logger.Warn("subject revocation incomplete",
			zap.String("subject", subject),
			zap.Int("removed", removed),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventSubjectRevoked, false, subject, "", failure, countMetadata(removed))
		return removed, failure
	}

	e.logger.Info("subject sessions revoked", zap.String("subject", subject), zap.Int("removed", removed))
	e.emitAudit(ctx, auditEventSubjectRevoked, true, subject, "", nil, countMetadata(removed))
	return removed, nil
}

// Ping reports whether the credential store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.store.Ping(ctx); err != nil {
		return storeFailure(opPing, err)
	}
	return nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func countMetadata(n int) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(n)}
	}
}
