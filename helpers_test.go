package goSession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key-0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = testSigningKey
	cfg.JWT.Issuer = "gosession-test"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type engineHarness struct {
	engine *Engine
	clock  *testClock
	memory *store.MemoryStore
}

// newTestEngine builds an Engine over a MemoryStore sharing the harness clock. configure
// runs after the defaults, so it may replace the store or the config.
func newTestEngine(t *testing.T, configure ...func(*Builder)) *engineHarness {
	t.Helper()

	clock := newTestClock()
	memory := store.NewMemoryStore(clock.Now)
	b := New().
		WithConfig(testConfig()).
		WithStore(memory).
		WithClock(clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &engineHarness{engine: engine, clock: clock, memory: memory}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var errBackendDown = errors.New("backend down")

// faultyStore delegates to a real store and fails the methods whose flag is set.
type faultyStore struct {
	CredentialStore

	mu       sync.Mutex
	failPut  bool
	failTake bool
	failDeny bool
	failRead bool
	failScan bool
}

func (s *faultyStore) set(fn func(*faultyStore)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func (s *faultyStore) fails(flag *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *flag
}

func (s *faultyStore) PutRefresh(ctx context.Context, id, subject string, ttl time.Duration) error {
	if s.fails(&s.failPut) {
		return errBackendDown
	}
	return s.CredentialStore.PutRefresh(ctx, id, subject, ttl)
}

func (s *faultyStore) TakeRefresh(ctx context.Context, id string) (string, bool, error) {
	if s.fails(&s.failTake) {
		return "", false, errBackendDown
	}
	return s.CredentialStore.TakeRefresh(ctx, id)
}

func (s *faultyStore) DenyAccess(ctx context.Context, id string, ttl time.Duration) error {
	if s.fails(&s.failDeny) {
		return errBackendDown
	}
	return s.CredentialStore.DenyAccess(ctx, id, ttl)
}

func (s *faultyStore) DenyOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if s.fails(&s.failDeny) {
		return false, errBackendDown
	}
	return s.CredentialStore.DenyOnce(ctx, id, ttl)
}

func (s *faultyStore) IsDenied(ctx context.Context, id string) (bool, error) {
	if s.fails(&s.failRead) {
		return false, errBackendDown
	}
	return s.CredentialStore.IsDenied(ctx, id)
}

func (s *faultyStore) DeleteRefreshBySubject(ctx context.Context, subject string) (int, error) {
	if s.fails(&s.failScan) {
		return 0, errBackendDown
	}
	return s.CredentialStore.DeleteRefreshBySubject(ctx, subject)
}

func newFaultyEngine(t *testing.T) (*engineHarness, *faultyStore) {
	t.Helper()
	var faulty *faultyStore
	h := newTestEngine(t, func(b *Builder) {
		faulty = &faultyStore{CredentialStore: b.store}
		b.WithStore(faulty)
	})
	return h, faulty
}
