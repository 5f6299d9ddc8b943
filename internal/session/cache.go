package session

import (
	"context"
	"sync"
	"time"
)

// Cache persists small values for one browser session.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Storage hands out the Cache of a session and drops abandoned ones. Touch
// marks a session as in use so Prune keeps it.
type Storage interface {
	Cache(sessionID string) Cache
	Touch(ctx context.Context, sessionID string) error
	Prune(ctx context.Context, idleSince time.Time) (int, error)
	Close() error
}

// MemoryCache is a Cache backed by a map.
type MemoryCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	touched time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string][]byte), touched: time.Now()}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = append([]byte(nil), value...)
	c.touched = time.Now()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	c.touched = time.Now()
	return nil
}

func (c *MemoryCache) touch() {
	c.mu.Lock()
	c.touched = time.Now()
	c.mu.Unlock()
}

func (c *MemoryCache) lastTouched() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// MemoryStorage keeps every session cache in process. Nothing survives a restart.
type MemoryStorage struct {
	mu     sync.Mutex
	caches map[string]*MemoryCache
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*MemoryCache)}
}

func (s *MemoryStorage) Cache(sessionID string) Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[sessionID]
	if !ok {
		c = NewMemoryCache()
		s.caches[sessionID] = c
	}
	return c
}

func (s *MemoryStorage) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[sessionID]; ok {
		c.touch()
	}
	return nil
}

func (s *MemoryStorage) Prune(_ context.Context, idleSince time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.caches {
		if c.lastTouched().Before(idleSince) {
			delete(s.caches, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Close() error { return nil }
