package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rifa/monitoring"

	"golang.org/x/sync/singleflight"
)

// Cache keeps short lived encoded responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Invalidate(ctx context.Context, keys ...string)
	Clear(ctx context.Context)
}

type entry struct {
	data     []byte
	storedAt time.Time
}

// Memory is a map cache whose entries expire lazily when read after ttl.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}

	if m.now().Sub(e.storedAt) > m.ttl {
		delete(m.entries, key)
		return nil, false
	}

	return e.data, true
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{data: value, storedAt: m.now()}
}

func (m *Memory) Invalidate(ctx context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
}

func (m *Memory) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]entry)
}

// Loader reads through a Cache, computing and storing values on a miss.
// Concurrent misses on the same key share a single computation.
type Loader struct {
	cache Cache
	group singleflight.Group
}

func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

func (l *Loader) Load(ctx context.Context, key string, dest any, compute func(ctx context.Context) (any, error)) error {
	if data, ok := l.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			monitoring.TrackCacheRequest("hit")
			return nil
		}
		l.cache.Invalidate(ctx, key)
	}
	monitoring.TrackCacheRequest("miss")

	// Waiters share the result, so one caller going away must not cancel it.
	shared := context.WithoutCancel(ctx)
	data, err, _ := l.group.Do(key, func() (any, error) {
		value, err := compute(shared)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		l.cache.Set(shared, key, encoded)
		return encoded, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(data.([]byte), dest)
}

func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	l.cache.Invalidate(ctx, keys...)
}
