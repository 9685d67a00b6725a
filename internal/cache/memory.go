package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used when Redis is not configured
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]time.Time
	prefix string
	now    func() time.Time
}

func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]time.Time),
		prefix: prefix,
		now:    time.Now,
	}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) IsSeen(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.prefix + key
	expiry, exists := m.data[k]
	if !exists {
		return false, nil
	}
	if !expiry.IsZero() && !expiry.After(m.now()) {
		delete(m.data, k)
		return false, nil
	}
	return true, nil
}

// MarkSeen records key. A non-positive ttl never expires.
func (m *MemoryStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiry time.Time
	if ttl > 0 {
		expiry = m.now().Add(ttl)
	}
	m.data[m.prefix+key] = expiry
	return nil
}

func (m *MemoryStore) ClearSeen(ctx context.Context, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	full := m.prefix + scope
	for k := range m.data {
		if strings.HasPrefix(k, full) {
			delete(m.data, k)
		}
	}
	return nil
}
