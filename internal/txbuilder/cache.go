package txbuilder

import (
	"crypto/sha256"
	"sync"
)

// Cache memoizes values derived from a metadata blob (chain parameters, codec
// registries). Entries are keyed by the SHA-256 of the blob that produced them
// and are never mutated after insertion.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[[sha256.Size]byte]T
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[[sha256.Size]byte]T)}
}

func ContentHash(blob []byte) [sha256.Size]byte {
	return sha256.Sum256(blob)
}

// Get returns the value for blob, calling load at most once per distinct blob.
// A failed load is not cached.
func (c *Cache[T]) Get(blob []byte, load func([]byte) (T, error)) (T, error) {
	key := ContentHash(blob)

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok = c.entries[key]; ok {
		return v, nil
	}
	v, err := load(blob)
	if err != nil {
		var zero T
		return zero, err
	}
	c.entries[key] = v
	return v, nil
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
