package goSession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", pair.Subject)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, h.clock.Now().Add(15*time.Minute), pair.AccessExpiresAt, 0)
	assert.WithinDuration(t, h.clock.Now().Add(7*24*time.Hour), pair.RefreshExpiresAt, 0)

	subject, err := h.engine.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "42", subject)

	refresh, denied := h.memory.Count()
	assert.Equal(t, 1, refresh)
	assert.Zero(t, denied)
}

func TestVerifyAccessRejectsOtherPurposes(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	_, err = h.engine.VerifyAccess(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongPurpose)
	assert.Equal(t, FailureWrongPurpose, KindOf(err))

	activation, err := h.engine.IssueToken(ctx, "42", PurposeActivation)
	require.NoError(t, err)
	_, err = h.engine.VerifyAccess(ctx, activation.Token)
	assert.Equal(t, FailureWrongPurpose, KindOf(err))
}

func TestVerifyAccessCodecFailures(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	_, err := h.engine.VerifyAccess(ctx, "")
	assert.Equal(t, FailureMalformed, KindOf(err))

	_, err = h.engine.VerifyAccess(ctx, "garbage")
	assert.Equal(t, FailureMalformed, KindOf(err))

	other, err := jwt.NewCodec(jwt.Config{
		SigningKey: []byte("another-signing-key-0123456789abcdef"),
		Issuer:     "gosession-test",
		Now:        h.clock.Now,
	})
	require.NoError(t, err)
	forged, err := other.Encode("42", jwt.PurposeAccess, time.Minute)
	require.NoError(t, err)
	_, err = h.engine.VerifyAccess(ctx, forged.Value)
	assert.Equal(t, FailureInvalidSignature, KindOf(err))

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)
	h.clock.Advance(15 * time.Minute)
	_, err = h.engine.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRotateSucceedsExactlyOnce(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	next, err := h.engine.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "42", next.Subject)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrStaleOrReplayed)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))

	// The replacement is itself rotatable.
	_, err = h.engine.Rotate(ctx, next.RefreshToken)
	require.NoError(t, err)

	// Rotation does not revoke the old access token.
	_, err = h.engine.VerifyAccess(ctx, pair.AccessToken)
	assert.NoError(t, err)
}

func TestRotateRejectsAccessTokenWithoutConsuming(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	_, err = h.engine.Rotate(ctx, pair.AccessToken)
	assert.Equal(t, FailureWrongPurpose, KindOf(err))

	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRotateExpiredRefresh(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	h.clock.Advance(7 * 24 * time.Hour)
	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureExpired, KindOf(err))
}

func TestConcurrentRotationsHaveOneWinner(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	const workers = 16
	results := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = h.engine.Rotate(ctx, pair.RefreshToken)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.Equal(t, FailureStaleOrReplayed, KindOf(err))
	}
	assert.Equal(t, 1, winners)
}

func TestRevokeSessionRevokesBothCredentials(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	require.NoError(t, h.engine.RevokeSession(ctx, pair.AccessToken, pair.RefreshToken))

	_, err = h.engine.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRevoked)
	assert.Equal(t, FailureRevoked, KindOf(err))

	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))

	// Revocation is idempotent.
	assert.NoError(t, h.engine.RevokeSession(ctx, pair.AccessToken, pair.RefreshToken))
}

func TestRevokeSessionAcceptsEitherCredential(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	first, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)
	require.NoError(t, h.engine.RevokeSession(ctx, first.AccessToken, ""))
	_, err = h.engine.Rotate(ctx, first.RefreshToken)
	assert.NoError(t, err, "access-only revocation leaves the refresh record")

	second, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)
	require.NoError(t, h.engine.RevokeSession(ctx, "", second.RefreshToken))
	_, err = h.engine.VerifyAccess(ctx, second.AccessToken)
	assert.NoError(t, err, "refresh-only revocation leaves the access token")

	assert.NoError(t, h.engine.RevokeSession(ctx, "", ""))
}

func TestDenylistEntryLivesForRemainingLifetimeOnly(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	require.NoError(t, h.engine.RevokeSession(ctx, pair.AccessToken, ""))

	_, denied := h.memory.Count()
	assert.Equal(t, 1, denied)

	h.clock.Advance(10*time.Minute - time.Millisecond)
	_, denied = h.memory.Count()
	assert.Equal(t, 1, denied)

	h.clock.Advance(time.Millisecond)
	_, denied = h.memory.Count()
	assert.Zero(t, denied, "deny entry must not outlive the token")
}

func TestRevokeExpiredAccessIsNoop(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	h.clock.Advance(16 * time.Minute)
	require.NoError(t, h.engine.RevokeSession(ctx, pair.AccessToken, ""))

	_, denied := h.memory.Count()
	assert.Zero(t, denied)
}

func TestRevokeSessionIsPartialOnFailure(t *testing.T) {
	h, faulty := newFaultyEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	faulty.set(func(s *faultyStore) { s.failDeny = true })
	err = h.engine.RevokeSession(ctx, pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, FailureStoreUnavailable, KindOf(err))

	faulty.set(func(s *faultyStore) { s.failDeny = false })

	// The refresh half still went through.
	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))
}

func TestRevokeSessionJoinsIndependentFailures(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	err = h.engine.RevokeSession(ctx, "not-a-token", pair.RefreshToken)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))

	err = h.engine.RevokeSession(ctx, pair.RefreshToken, pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongPurpose)
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 2)
}

func TestRevokeAllForSubject(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	var sevens []*TokenPair
	for i := 0; i < 3; i++ {
		pair, err := h.engine.IssueSession(ctx, "7")
		require.NoError(t, err)
		sevens = append(sevens, pair)
	}
	eight, err := h.engine.IssueSession(ctx, "8")
	require.NoError(t, err)

	removed, err := h.engine.RevokeAllForSubject(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, pair := range sevens {
		_, err := h.engine.Rotate(ctx, pair.RefreshToken)
		assert.Equal(t, FailureStaleOrReplayed, KindOf(err))
	}
	_, err = h.engine.Rotate(ctx, eight.RefreshToken)
	assert.NoError(t, err)

	removed, err = h.engine.RevokeAllForSubject(ctx, "7")
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = h.engine.RevokeAllForSubject(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestStoreFailuresFailClosed(t *testing.T) {
	h, faulty := newFaultyEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	faulty.set(func(s *faultyStore) { s.failRead = true })
	subject, err := h.engine.VerifyAccess(ctx, pair.AccessToken)
	assert.Empty(t, subject)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, errors.Is(err, ErrRevoked))

	faulty.set(func(s *faultyStore) { s.failPut = true })
	issued, err := h.engine.IssueSession(ctx, "42")
	assert.Nil(t, issued, "no tokens without a stored refresh record")
	assert.Equal(t, FailureStoreUnavailable, KindOf(err))

	faulty.set(func(s *faultyStore) { s.failTake = true })
	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStoreUnavailable, KindOf(err))

	faulty.set(func(s *faultyStore) { s.failScan = true })
	_, err = h.engine.RevokeAllForSubject(ctx, "42")
	assert.Equal(t, FailureStoreUnavailable, KindOf(err))

	assert.Positive(t, h.engine.MetricsSnapshot().Counters[MetricStoreUnavailable])
}

func TestRotateAfterConsumeWithFailedWrite(t *testing.T) {
	h, faulty := newFaultyEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)

	faulty.set(func(s *faultyStore) { s.failPut = true })
	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStoreUnavailable, KindOf(err))

	faulty.set(func(s *faultyStore) { s.failPut = false })
	_, err = h.engine.Rotate(ctx, pair.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err), "consumed record must not come back")
}

func TestScenarioSubject42(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	// Login.
	login, err := h.engine.IssueSession(ctx, "42")
	require.NoError(t, err)
	subject, err := h.engine.VerifyAccess(ctx, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "42", subject)

	// Refresh a few minutes later.
	h.clock.Advance(3 * time.Minute)
	rotated, err := h.engine.Rotate(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "42", rotated.Subject)

	// An attacker replays the original refresh token.
	_, err = h.engine.Rotate(ctx, login.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))

	// Logout.
	require.NoError(t, h.engine.RevokeSession(ctx, rotated.AccessToken, rotated.RefreshToken))
	_, err = h.engine.VerifyAccess(ctx, rotated.AccessToken)
	assert.Equal(t, FailureRevoked, KindOf(err))
	_, err = h.engine.Rotate(ctx, rotated.RefreshToken)
	assert.Equal(t, FailureStaleOrReplayed, KindOf(err))

	// After natural expiry the denylist entry is gone and the token is simply expired.
	h.clock.Advance(15 * time.Minute)
	_, err = h.engine.VerifyAccess(ctx, rotated.AccessToken)
	assert.Equal(t, FailureExpired, KindOf(err))
	_, denied := h.memory.Count()
	assert.Zero(t, denied)
}

func TestInvalidInputs(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	_, err := h.engine.IssueSession(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSubject)
	assert.Equal(t, FailureNone, KindOf(err))

	var nilEngine *Engine
	_, err = nilEngine.VerifyAccess(ctx, "x")
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = nilEngine.IssueSession(ctx, "42")
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.ErrorIs(t, nilEngine.RevokeSession(ctx, "", ""), ErrEngineNotReady)
	assert.ErrorIs(t, nilEngine.Ping(ctx), ErrEngineNotReady)
	nilEngine.Close()
	assert.Zero(t, nilEngine.AuditDropped())
	assert.Empty(t, nilEngine.MetricsSnapshot().Counters)
}

func TestPing(t *testing.T) {
	h := newTestEngine(t)
	assert.NoError(t, h.engine.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, FailureStoreUnavailable, KindOf(h.engine.Ping(ctx)))
}
