package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Kind selects a Cache implementation.
type Kind string

const (
	KindLRU       Kind = "lru"
	KindRistretto Kind = "ristretto"
	KindNone      Kind = "none"
)

// New builds a cache of the given kind. KindNone returns a nil Cache, which
// callers treat as "no caching".
func New[T any](kind Kind, size int, ttl time.Duration) (Cache[T], error) {
	switch kind {
	case KindLRU, "":
		return NewLRUCache[T](size, ttl), nil
	case KindRistretto:
		c, err := NewRistrettoCache[T](size, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	case KindNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache kind: %s", kind)
	}
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds c to the periodic cleanup if it supports it.
func (m *Manager) Register(c any) {
	if cleaner, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cleaner)
	}
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			totalCleaned := 0
			for _, c := range m.caches {
				totalCleaned += c.CleanExpired()
			}
			if totalCleaned > 0 {
				slog.DebugContext(context.Background(), "Expired cache entries removed", "count", totalCleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine. It must only be called after
// StartCleanup.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
		m.stopCleanup = nil
	}
}
