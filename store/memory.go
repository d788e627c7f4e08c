package store

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	subject   string
	expiresAt time.Time
}

// MemoryStore is an in-process credential store. It is not shared between processes, so a
// multi-instance deployment must use [RedisStore].
//
// Expired entries are evicted lazily on access and by [MemoryStore.Cleanup].
type MemoryStore struct {
	mu      sync.Mutex
	refresh map[string]memoryRecord
	deny    map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty [MemoryStore]. now may be nil, in which case time.Now is used.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		refresh: make(map[string]memoryRecord),
		deny:    make(map[string]time.Time),
		now:     now,
	}
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// PutRefresh stores subject under id for ttl.
func (m *MemoryStore) PutRefresh(ctx context.Context, id, subject string, ttl time.Duration) error {
	if id == "" || subject == "" || ttl <= 0 {
		return ErrInvalidRecord
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.refresh[id] = memoryRecord{subject: subject, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// TakeRefresh reads and deletes the record for id under a single lock.
func (m *MemoryStore) TakeRefresh(ctx context.Context, id string) (string, bool, error) {
	if err := checkContext(ctx); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.refresh[id]
	if !ok {
		return "", false, nil
	}
	delete(m.refresh, id)
	if !m.now().Before(rec.expiresAt) {
		return "", false, nil
	}
	return rec.subject, true, nil
}

// DenyAccess denies id for ttl without extending an existing live entry.
func (m *MemoryStore) DenyAccess(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return ErrInvalidRecord
	}
	if ttl <= 0 {
		return nil
	}
	_, err := m.DenyOnce(ctx, id, ttl)
	return err
}

// DenyOnce inserts id if no live entry exists and reports whether it did.
func (m *MemoryStore) DenyOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" || ttl <= 0 {
		return false, ErrInvalidRecord
	}
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.deny[id]; ok && now.Before(exp) {
		return false, nil
	}
	m.deny[id] = now.Add(ttl)
	return true, nil
}

// IsDenied reports whether id has a live denylist entry.
func (m *MemoryStore) IsDenied(ctx context.Context, id string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.deny[id]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.deny, id)
		return false, nil
	}
	return true, nil
}

// DeleteRefreshBySubject removes every live record owned by subject.
func (m *MemoryStore) DeleteRefreshBySubject(ctx context.Context, subject string) (int, error) {
	if subject == "" {
		return 0, ErrInvalidRecord
	}
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, rec := range m.refresh {
		if rec.subject != subject {
			continue
		}
		delete(m.refresh, id)
		if now.Before(rec.expiresAt) {
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds unless ctx is done.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return checkContext(ctx)
}

// Cleanup evicts expired refresh records and denylist entries and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, rec := range m.refresh {
		if !now.Before(rec.expiresAt) {
			delete(m.refresh, id)
			removed++
		}
	}
	for id, exp := range m.deny {
		if !now.Before(exp) {
			delete(m.deny, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live refresh records and denylist entries.
func (m *MemoryStore) Count() (refresh, denied int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, rec := range m.refresh {
		if now.Before(rec.expiresAt) {
			refresh++
		}
	}
	for _, exp := range m.deny {
		if now.Before(exp) {
			denied++
		}
	}
	return refresh, denied
}
