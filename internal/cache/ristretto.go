package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache adapts a ristretto cache to Cache. Every entry costs 1, so
// maxSize bounds the number of entries.
type RistrettoCache[T any] struct {
	c   *ristretto.Cache[string, T]
	ttl time.Duration
}

func NewRistrettoCache[T any](maxSize int, ttl time.Duration) (*RistrettoCache[T], error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters:        int64(maxSize) * 10,
		MaxCost:            int64(maxSize),
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &RistrettoCache[T]{c: c, ttl: ttl}, nil
}

func (r *RistrettoCache[T]) Get(key string) (T, bool) {
	return r.c.Get(key)
}

// Set waits for the write buffers to drain so the value is visible to the
// next Get.
func (r *RistrettoCache[T]) Set(key string, data T) {
	r.c.SetWithTTL(key, data, 1, r.ttl)
	r.c.Wait()
}

func (r *RistrettoCache[T]) Delete(key string) {
	r.c.Del(key)
}

// Size is approximate: ristretto only tracks admissions and evictions.
func (r *RistrettoCache[T]) Size() int {
	m := r.c.Metrics
	if m == nil {
		return 0
	}
	n := int64(m.KeysAdded()) - int64(m.KeysEvicted())
	if n < 0 {
		return 0
	}
	return int(n)
}

func (r *RistrettoCache[T]) Close() {
	r.c.Close()
}
