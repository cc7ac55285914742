package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-lms-client/store"
)

var _ store.Store = (*MemStore)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemStore is a thread-safe in-memory Store with per-entry TTLs.
type MemStore struct {
	entries map[string]entry
	nowFunc func() time.Time
	mu      sync.RWMutex
}

type Option func(*MemStore)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(m *MemStore) {
		m.nowFunc = now
	}
}

func New(options ...Option) *MemStore {
	m := &MemStore{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if m.expired(e) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if cur, ok := m.entries[key]; ok && m.expired(cur) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (m *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = m.nowFunc().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *MemStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	return nil
}

// Len returns the number of live entries.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !m.expired(e) {
			n++
		}
	}
	return n
}

// Cleanup removes expired entries
func (m *MemStore) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
		}
	}
}

func (m *MemStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !m.nowFunc().Before(e.expiresAt)
}
