package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"serve", "token", "hash-password"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := execute(t, "hunter2-but-longer\n", "hash-password")
	require.NoError(t, err)

	encoded := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"), encoded)

	hasher, err := password.New(password.DefaultParams())
	require.NoError(t, err)
	ok, err := hasher.Verify("hunter2-but-longer", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRequiresInput(t *testing.T) {
	_, err := execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestTokenIssuePrintsVerifiableToken(t *testing.T) {
	t.Setenv("GOSESSION_JWT_SIGNING_KEY", testKey)

	out, err := execute(t, "", "token", "issue", "--subject", "7", "--purpose", "reset")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "purpose=reset")

	codec, err := jwt.NewCodec(jwt.Config{SigningKey: []byte(testKey), Issuer: "gosession"})
	require.NoError(t, err)
	claims, err := codec.Decode(lines[0], jwt.PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
}

func TestTokenIssueRejectsSessionPurposes(t *testing.T) {
	t.Setenv("GOSESSION_JWT_SIGNING_KEY", testKey)

	for _, purpose := range []string{"access", "refresh", "admin"} {
		_, err := execute(t, "", "token", "issue", "--subject", "7", "--purpose", purpose)
		assert.Error(t, err, purpose)
	}
}

func TestTokenIssueRequiresSigningKey(t *testing.T) {
	_, err := execute(t, "", "token", "issue", "--subject", "7")
	assert.Error(t, err)
}

func TestConnectEmbeddedRedis(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	cfg.Redis.Embedded = true

	client, cleanup, err := connectRedis(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestConnectRedisGivesUp(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.ConnectRetries = 1

	_, _, err = connectRedis(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := newLogger("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
	_, err := newLogger("loud", "json")
	assert.Error(t, err)
}
