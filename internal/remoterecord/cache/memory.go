package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache. Expired entries are dropped on read.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	config Config
	now    func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(cfg Config) *MemoryCache {
	return &MemoryCache{
		items:  make(map[string]memoryItem),
		config: cfg,
		now:    time.Now,
	}
}

// Get returns the value stored under key
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := m.config.Prefix + key
	m.mu.RLock()
	item, ok := m.items[full]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if !item.expires.IsZero() && m.now().After(item.expires) {
		m.mu.Lock()
		delete(m.items, full)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return item.value, nil
}

// Set stores value under key. A negative ttl stores without expiry.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl = ttlOrDefault(ttl, m.config); ttl > 0 {
		item.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[m.config.Prefix+key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes key
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
