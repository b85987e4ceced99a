package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process Store for single-instance deployments. Entries
// live in one expirable LRU per TTL, and a key is held by at most one of them.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	caches     map[time.Duration]*expirable.LRU[string, []byte]
}

// NewMemoryStore returns an empty MemoryStore. Each TTL class keeps at most
// maxEntries keys, evicting the least recently used; zero means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: max(maxEntries, 0),
		caches:     make(map[time.Duration]*expirable.LRU[string, []byte]),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, value, ttl)
	return nil
}

func (m *MemoryStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.caches {
		c.Remove(key)
	}
	return nil
}

// lookup expects m.mu to be held.
func (m *MemoryStore) lookup(key string) ([]byte, bool) {
	for _, c := range m.caches {
		if value, ok := c.Get(key); ok {
			return value, true
		}
	}
	return nil, false
}

// put expects m.mu to be held.
func (m *MemoryStore) put(key string, value []byte, ttl time.Duration) {
	ttl = max(ttl, 0)
	for class, c := range m.caches {
		if class != ttl {
			c.Remove(key)
		}
	}

	c, ok := m.caches[ttl]
	if !ok {
		c = expirable.NewLRU[string, []byte](m.maxEntries, nil, ttl)
		m.caches[ttl] = c
	}
	c.Add(key, append([]byte(nil), value...))
}
