package goSession

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurposeTokenRedeemsOnce(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueToken(ctx, "42", PurposeActivation)
	require.NoError(t, err)
	assert.Equal(t, PurposeActivation, issued.Purpose)
	assert.WithinDuration(t, h.clock.Now().Add(24*time.Hour), issued.ExpiresAt, 0)

	claims, err := h.engine.VerifyToken(ctx, issued.Token, PurposeActivation)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)

	claims, err = h.engine.RedeemToken(ctx, issued.Token, PurposeActivation)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)

	_, err = h.engine.RedeemToken(ctx, issued.Token, PurposeActivation)
	assert.ErrorIs(t, err, ErrRevoked)

	_, err = h.engine.VerifyToken(ctx, issued.Token, PurposeActivation)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestPurposeTokenRejectsOtherPurposes(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	reset, err := h.engine.IssueToken(ctx, "42", PurposeReset)
	require.NoError(t, err)
	assert.WithinDuration(t, h.clock.Now().Add(time.Hour), reset.ExpiresAt, 0)

	_, err = h.engine.RedeemToken(ctx, reset.Token, PurposeActivation)
	assert.Equal(t, FailureWrongPurpose, KindOf(err))

	for _, purpose := range []Purpose{PurposeAccess, PurposeRefresh, Purpose("admin")} {
		_, err = h.engine.IssueToken(ctx, "42", purpose)
		assert.ErrorIs(t, err, ErrPurposeNotAllowed)
		_, err = h.engine.VerifyToken(ctx, reset.Token, purpose)
		assert.ErrorIs(t, err, ErrPurposeNotAllowed)
		_, err = h.engine.RedeemToken(ctx, reset.Token, purpose)
		assert.ErrorIs(t, err, ErrPurposeNotAllowed)
	}

	_, err = h.engine.IssueToken(ctx, "", PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	// Still redeemable after the rejected attempts.
	_, err = h.engine.RedeemToken(ctx, reset.Token, PurposeReset)
	assert.NoError(t, err)
}

func TestPurposeTokenExpires(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	reset, err := h.engine.IssueToken(ctx, "42", PurposeReset)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.engine.RedeemToken(ctx, reset.Token, PurposeReset)
	assert.Equal(t, FailureExpired, KindOf(err))
}

func TestRedeemMarkerBoundedByTokenLifetime(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	reset, err := h.engine.IssueToken(ctx, "42", PurposeReset)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Minute)
	_, err = h.engine.RedeemToken(ctx, reset.Token, PurposeReset)
	require.NoError(t, err)

	h.clock.Advance(40*time.Minute - time.Millisecond)
	_, denied := h.memory.Count()
	assert.Equal(t, 1, denied)

	h.clock.Advance(time.Millisecond)
	_, denied = h.memory.Count()
	assert.Zero(t, denied)
}

func TestConcurrentRedeemHasOneWinner(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueToken(ctx, "42", PurposeActivation)
	require.NoError(t, err)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.engine.RedeemToken(ctx, issued.Token, PurposeActivation); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, uint64(15), h.engine.MetricsSnapshot().Counters[MetricTokenReplayRejected])
}

func TestRedeemFailsClosed(t *testing.T) {
	h, faulty := newFaultyEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueToken(ctx, "42", PurposeActivation)
	require.NoError(t, err)

	faulty.set(func(s *faultyStore) { s.failDeny = true })
	_, err = h.engine.RedeemToken(ctx, issued.Token, PurposeActivation)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	faulty.set(func(s *faultyStore) { s.failDeny = false })
	_, err = h.engine.RedeemToken(ctx, issued.Token, PurposeActivation)
	assert.NoError(t, err)
}
