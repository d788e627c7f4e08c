package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning.
type Config struct {
	KeyPrefix string
	// MaxAttempts is the number of failures allowed in one window before Check refuses.
	MaxAttempts int
	Window      time.Duration
	// PerIP additionally counts failures per client IP.
	PerIP bool
}

// DefaultConfig returns five failures per fifteen minutes, counted per identifier and per IP.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:   "gosession",
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		PerIP:       true,
	}
}

// Limiter throttles failed logins with fixed-window Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by redisClient. Zero config fields take their defaults.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	def := DefaultConfig()
	cfg.KeyPrefix = strings.TrimSuffix(strings.TrimSpace(cfg.KeyPrefix), ":")
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Check reports ErrRateLimited once identifier or ip has used up its failure budget.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records a failed login. It returns ErrRateLimited when this failure used up the budget.
func (l *Limiter) Fail(ctx context.Context, identifier, ip string) error {
	limited := false
	for _, key := range l.keys(identifier, ip) {
		count, err := l.incrementWithTTL(ctx, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the identifier counter after a successful login. The IP counter is kept so a
// client cannot spray many identifiers from one address by logging into its own account.
func (l *Limiter) Reset(ctx context.Context, identifier, _ string) error {
	if identifier == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the failures counted for identifier in the current window.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.identifierKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := make([]string, 0, 2)
	if identifier != "" {
		keys = append(keys, l.identifierKey(identifier))
	}
	if l.config.PerIP && ip != "" {
		keys = append(keys, l.config.KeyPrefix+":login:ip:"+ip)
	}
	return keys
}

func (l *Limiter) identifierKey(identifier string) string {
	return l.config.KeyPrefix + ":login:id:" + strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed window: only the first hit sets the expiry.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
