package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/rate"
)

const envPrefix = "GOSESSION"

// appConfig is the full CLI configuration. Keys use "." for nesting and "-" between words,
// so jwt.signing-key is set by GOSESSION_JWT_SIGNING_KEY.
type appConfig struct {
	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
		SecureCookies   bool          `mapstructure:"secure-cookies"`
		CookieDomain    string        `mapstructure:"cookie-domain"`
	} `mapstructure:"http"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Redis struct {
		Addr           string `mapstructure:"addr"`
		Password       string `mapstructure:"password"`
		DB             int    `mapstructure:"db"`
		Embedded       bool   `mapstructure:"embedded"`
		ConnectRetries uint64 `mapstructure:"connect-retries"`
	} `mapstructure:"redis"`

	JWT struct {
		SigningKey string `mapstructure:"signing-key"`
		Issuer     string `mapstructure:"issuer"`
		KeyID      string `mapstructure:"key-id"`
	} `mapstructure:"jwt"`

	TTL struct {
		Access     time.Duration `mapstructure:"access"`
		Refresh    time.Duration `mapstructure:"refresh"`
		Activation time.Duration `mapstructure:"activation"`
		Reset      time.Duration `mapstructure:"reset"`
	} `mapstructure:"ttl"`

	Store struct {
		KeyPrefix        string        `mapstructure:"key-prefix"`
		OperationTimeout time.Duration `mapstructure:"operation-timeout"`
		ScanBatchSize    int64         `mapstructure:"scan-batch-size"`
	} `mapstructure:"store"`

	Audit struct {
		Enabled    bool `mapstructure:"enabled"`
		BufferSize int  `mapstructure:"buffer-size"`
	} `mapstructure:"audit"`

	Metrics struct {
		Latency bool `mapstructure:"latency"`
	} `mapstructure:"metrics"`

	Login struct {
		MaxAttempts int           `mapstructure:"max-attempts"`
		Window      time.Duration `mapstructure:"window"`
		PerIP       bool          `mapstructure:"per-ip"`
	} `mapstructure:"login"`

	Directory string `mapstructure:"directory"`
}

// flagKeys maps command-line flags onto config keys. Flags win over env and file.
var flagKeys = map[string]string{
	"addr":           "http.addr",
	"embedded-redis": "redis.embedded",
	"redis-addr":     "redis.addr",
	"directory":      "directory",
	"log-level":      "log.level",
}

func setDefaults(v *viper.Viper) {
	engine := goSession.DefaultConfig()
	throttle := rate.DefaultConfig()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown-timeout", 10*time.Second)
	v.SetDefault("http.secure-cookies", false)
	v.SetDefault("http.cookie-domain", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embedded", false)
	v.SetDefault("redis.connect-retries", 5)

	v.SetDefault("jwt.signing-key", "")
	v.SetDefault("jwt.issuer", "gosession")
	v.SetDefault("jwt.key-id", "")

	v.SetDefault("ttl.access", engine.TTL.Access)
	v.SetDefault("ttl.refresh", engine.TTL.Refresh)
	v.SetDefault("ttl.activation", engine.TTL.Activation)
	v.SetDefault("ttl.reset", engine.TTL.Reset)

	v.SetDefault("store.key-prefix", engine.Store.KeyPrefix)
	v.SetDefault("store.operation-timeout", engine.Store.OperationTimeout)
	v.SetDefault("store.scan-batch-size", engine.Store.ScanBatchSize)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer-size", engine.Audit.BufferSize)

	v.SetDefault("metrics.latency", true)

	v.SetDefault("login.max-attempts", throttle.MaxAttempts)
	v.SetDefault("login.window", throttle.Window)
	v.SetDefault("login.per-ip", throttle.PerIP)

	v.SetDefault("directory", "users.yaml")
}

// loadConfig merges defaults, the optional config file, GOSESSION_* env vars and any
// bound flags from flags, in increasing precedence.
func loadConfig(path string, flags *pflag.FlagSet) (*appConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// engineConfig converts the CLI config into the engine's. Validation is left to Build.
func (c *appConfig) engineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.SigningKey = []byte(c.JWT.SigningKey)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.KeyID = c.JWT.KeyID
	cfg.TTL.Access = c.TTL.Access
	cfg.TTL.Refresh = c.TTL.Refresh
	cfg.TTL.Activation = c.TTL.Activation
	cfg.TTL.Reset = c.TTL.Reset
	cfg.Store.KeyPrefix = c.Store.KeyPrefix
	cfg.Store.OperationTimeout = c.Store.OperationTimeout
	cfg.Store.ScanBatchSize = c.Store.ScanBatchSize
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	return cfg
}

func (c *appConfig) throttleConfig() rate.Config {
	return rate.Config{
		KeyPrefix:   c.Store.KeyPrefix,
		MaxAttempts: c.Login.MaxAttempts,
		Window:      c.Login.Window,
		PerIP:       c.Login.PerIP,
	}
}

// Validate checks the settings the engine does not own.
func (c *appConfig) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	if !c.Redis.Embedded && c.Redis.Addr == "" {
		return errors.New("redis.addr is required unless redis.embedded is set")
	}
	if c.Directory == "" {
		return errors.New("directory is required")
	}
	return nil
}
