package goSession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithSigningKey(testSigningKey).Build()
	require.Error(t, err)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.SigningKey = []byte("short")
	_, rdb := newTestRedis(t)

	_, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	require.Error(t, err)
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithConfig(testConfig()).WithRedis(rdb)

	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = b.Build()
	assert.Error(t, err)
}

func TestWithConfigCopiesSigningKey(t *testing.T) {
	cfg := testConfig()
	key := append([]byte(nil), cfg.JWT.SigningKey...)
	cfg.JWT.SigningKey = key
	_, rdb := newTestRedis(t)

	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	defer engine.Close()

	pair, err := engine.IssueSession(context.Background(), "42")
	require.NoError(t, err)

	for i := range key {
		key[i] = 'x'
	}

	_, err = engine.VerifyAccess(context.Background(), pair.AccessToken)
	assert.NoError(t, err)
}

func TestWithStoreTakesPrecedence(t *testing.T) {
	mr, rdb := newTestRedis(t)
	h := newTestEngine(t, func(b *Builder) { b.WithRedis(rdb) })

	_, err := h.engine.IssueSession(context.Background(), "42")
	require.NoError(t, err)

	assert.Empty(t, mr.Keys())
	refresh, _ := h.memory.Count()
	assert.Equal(t, 1, refresh)
}
