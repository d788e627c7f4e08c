package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix        = "gosession"
	defaultOperationTimeout = 500 * time.Millisecond
	defaultScanBatchSize    = 256
)

const deleteIfOwnedScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var deleteIfOwnedLua = redis.NewScript(deleteIfOwnedScript)

// RedisConfig configures a [RedisStore]. Zero values fall back to defaults.
type RedisConfig struct {
	// KeyPrefix namespaces every key. Defaults to "gosession".
	KeyPrefix string
	// OperationTimeout bounds each Redis round trip. Defaults to 500ms.
	OperationTimeout time.Duration
	// ScanBatchSize is the COUNT hint used by DeleteRefreshBySubject. Defaults to 256.
	ScanBatchSize int64
}

// RedisStore keeps refresh records and denylist entries in Redis.
//
// Keys:
//
//	<prefix>:rt:<id>    -> subject, TTL = refresh lifetime
//	<prefix>:deny:<id>  -> "1",     TTL = remaining token lifetime
//
// Requires Redis 6.2+ for GETDEL.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	timeout   time.Duration
	scanBatch int64
}

// NewRedisStore creates a [RedisStore] over an existing client. The store does not own the
// client and never closes it.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	prefix := strings.TrimSuffix(strings.TrimSpace(cfg.KeyPrefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	batch := cfg.ScanBatchSize
	if batch <= 0 {
		batch = defaultScanBatchSize
	}

	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		timeout:   timeout,
		scanBatch: batch,
	}
}

func (s *RedisStore) refreshKey(id string) string {
	return s.prefix + ":rt:" + id
}

func (s *RedisStore) denyKey(id string) string {
	return s.prefix + ":deny:" + id
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// PutRefresh stores subject under the refresh token id for ttl.
//
//	Performance: 1 Redis SET.
func (s *RedisStore) PutRefresh(ctx context.Context, id, subject string, ttl time.Duration) error {
	if id == "" || subject == "" || ttl <= 0 {
		return ErrInvalidRecord
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.refreshKey(id), subject, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// TakeRefresh atomically reads and deletes the refresh record for id. ok is false when no
// live record exists, which includes a record already taken by a concurrent caller.
//
//	Performance: 1 Redis GETDEL.
func (s *RedisStore) TakeRefresh(ctx context.Context, id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	subject, err := s.redis.GetDel(ctx, s.refreshKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return subject, true, nil
}

// DenyAccess adds id to the denylist for ttl. An existing entry is left untouched, so a
// repeated denial never extends the original expiry. Non-positive ttl is a no-op.
//
//	Performance: 1 Redis SET NX.
func (s *RedisStore) DenyAccess(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return ErrInvalidRecord
	}
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.SetNX(ctx, s.denyKey(id), "1", ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DenyOnce inserts id into the denylist only if absent and reports whether this call
// created the entry.
//
//	Performance: 1 Redis SET NX.
func (s *RedisStore) DenyOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" || ttl <= 0 {
		return false, ErrInvalidRecord
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.redis.SetNX(ctx, s.denyKey(id), "1", ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return created, nil
}

// IsDenied reports whether id currently has a live denylist entry.
//
//	Performance: 1 Redis EXISTS.
func (s *RedisStore) IsDenied(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.denyKey(id)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// DeleteRefreshBySubject removes every live refresh record owned by subject and returns how
// many were removed.
//
// SCALE NOTE: this walks the whole refresh keyspace with SCAN, so cost grows with the
// number of live refresh records across all subjects, not just this one. A record created
// after the scan passes its slot survives; it stays bounded by its own TTL. Deletion is a
// compare-and-delete script, so a record consumed concurrently by TakeRefresh is neither
// resurrected nor counted.
//
//	Performance: O(live refresh records) SCAN + pipelined GET, 1 EVALSHA per match.
func (s *RedisStore) DeleteRefreshBySubject(ctx context.Context, subject string) (int, error) {
	if subject == "" {
		return 0, ErrInvalidRecord
	}

	match := s.prefix + ":rt:*"
	removed := 0
	var cursor uint64

	for {
		keys, next, err := s.scan(ctx, cursor, match)
		if err != nil {
			return removed, err
		}

		owned, err := s.ownedKeys(ctx, keys, subject)
		if err != nil {
			return removed, err
		}

		for _, key := range owned {
			n, err := s.deleteIfOwned(ctx, key, subject)
			if err != nil {
				return removed, err
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *RedisStore) scan(ctx context.Context, cursor uint64, match string) ([]string, uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, next, err := s.redis.Scan(ctx, cursor, match, s.scanBatch).Result()
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return keys, next, nil
}

func (s *RedisStore) ownedKeys(ctx context.Context, keys []string, subject string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	owned := make([]string, 0, len(keys))
	for i, cmd := range cmds {
		value, err := cmd.Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable(err)
		}
		if value == subject {
			owned = append(owned, keys[i])
		}
	}
	return owned, nil
}

func (s *RedisStore) deleteIfOwned(ctx context.Context, key, subject string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := deleteIfOwnedLua.Run(ctx, s.redis, []string{key}, subject).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// Ping checks Redis reachability within the operation timeout.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
