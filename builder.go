package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. The signing secret, store and clock are injected here; the
// Engine reads no globals.
//
// A Builder is single-use: Build may succeed at most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  CredentialStore

	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSigningKey sets Config.JWT.SigningKey. key is copied.
func (b *Builder) WithSigningKey(key []byte) *Builder {
	b.config.JWT.SigningKey = cloneBytes(key)
	return b
}

// WithRedis backs the engine with a store.RedisStore built from Config.Store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a ready credential store. It takes precedence over WithRedis.
func (b *Builder) WithStore(s CredentialStore) *Builder {
	b.store = s
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for token timestamps, expiry checks and denylist TTLs.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. It performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- CREDENTIAL STORE --------
	credentials := b.store
	if credentials == nil {
		if b.redis == nil {
			return nil, errors.New("credential store or redis client required")
		}
		credentials = store.NewRedisStore(b.redis, store.RedisConfig{
			KeyPrefix:        cfg.Store.KeyPrefix,
			OperationTimeout: cfg.Store.OperationTimeout,
			ScanBatchSize:    cfg.Store.ScanBatchSize,
		})
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gosession")

	// -------- CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningKey: cfg.JWT.SigningKey,
		Issuer:     cfg.JWT.Issuer,
		KeyID:      cfg.JWT.KeyID,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		codec:   codec,
		store:   credentials,
		logger:  logger,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true

	return engine, nil
}
