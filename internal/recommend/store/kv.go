package store

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/database"
)

// KV is the slot storage the store writes through. database.RedisClient and
// database.BadgerClient satisfy it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// MemoryKV is a process-local KV for single-process deployments and tests.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && !m.now().Before(e.expires)) {
		return nil, database.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// OpenKV builds the backend named by cfg.Backend.
func OpenKV(cfg config.CacheConfig) (KV, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryKV(), nil
	case "redis":
		client, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "badger":
		client, err := database.OpenBadger(cfg.Badger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

func closeKV(kv KV) error {
	if c, ok := kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
