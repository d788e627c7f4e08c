package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT     JWTConfig
	TTL     TTLConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing secret and optional issuer/key id. Rotating SigningKey
// invalidates every outstanding token.
type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	KeyID      string
}

/*
====================================
TTL CONFIG
====================================
*/

// TTLConfig holds the lifetime of each token purpose.
type TTLConfig struct {
	Access     time.Duration
	Refresh    time.Duration
	Activation time.Duration
	Reset      time.Duration
}

// For returns the configured lifetime for purpose, or 0 for an unknown purpose.
func (t TTLConfig) For(purpose jwt.Purpose) time.Duration {
	switch purpose {
	case jwt.PurposeAccess:
		return t.Access
	case jwt.PurposeRefresh:
		return t.Refresh
	case jwt.PurposeActivation:
		return t.Activation
	case jwt.PurposeReset:
		return t.Reset
	default:
		return 0
	}
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the Redis credential store created by [Builder.WithRedis]. It is
// ignored when a store is injected with [Builder.WithStore].
type StoreConfig struct {
	KeyPrefix        string
	OperationTimeout time.Duration
	ScanBatchSize    int64
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the verify latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when [Builder.WithConfig] is not called.
// SigningKey is empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		TTL: TTLConfig{
			Access:     15 * time.Minute,
			Refresh:    7 * 24 * time.Hour,
			Activation: 24 * time.Hour,
			Reset:      time.Hour,
		},
		Store: StoreConfig{
			KeyPrefix:        "gosession",
			OperationTimeout: 500 * time.Millisecond,
			ScanBatchSize:    256,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SigningKey) < jwt.MinKeyLength {
		return fmt.Errorf("JWT SigningKey must be at least %d bytes", jwt.MinKeyLength)
	}
	if strings.TrimSpace(c.JWT.Issuer) != c.JWT.Issuer {
		return errors.New("JWT Issuer must not have surrounding whitespace")
	}

	// TTL
	for _, entry := range []struct {
		name string
		ttl  time.Duration
	}{
		{"Access", c.TTL.Access},
		{"Refresh", c.TTL.Refresh},
		{"Activation", c.TTL.Activation},
		{"Reset", c.TTL.Reset},
	} {
		if entry.ttl < time.Second {
			return fmt.Errorf("TTL %s must be >= 1s", entry.name)
		}
	}
	if c.TTL.Refresh <= c.TTL.Access {
		return errors.New("TTL Refresh must be longer than TTL Access")
	}

	// Store
	if c.Store.KeyPrefix != "" && strings.ContainsAny(c.Store.KeyPrefix, " *?[]") {
		return errors.New("Store KeyPrefix must not contain spaces or glob characters")
	}
	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if c.Store.ScanBatchSize < 0 {
		return errors.New("Store ScanBatchSize must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
