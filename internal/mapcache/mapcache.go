// Package mapcache caches per-viewpoint derived artifacts keyed by a
// monotonically increasing profile version.
//
// Each viewpoint holds at most one value at a time: the newest version that
// has finished building. Put rejects values older than what is stored, so a
// slow rebuild finishing after a newer one never wins. Readers tolerate
// values that are stale by a version; the display loop keeps rendering with
// the previous table until the new one is swapped in.
package mapcache

import (
	"sync"
	"sync/atomic"
)

// Cache is a version-guarded per-viewpoint store.
// The zero value is not usable; call New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[int]entry[V]

	// Statistics (atomic for zero-allocation reads).
	hits     atomic.Uint64
	misses   atomic.Uint64
	swaps    atomic.Uint64
	rejected atomic.Uint64
}

type entry[V any] struct {
	value   V
	version uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries  int
	Hits     uint64
	Misses   uint64
	Swaps    uint64
	Rejected uint64
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[int]entry[V])}
}

// Get returns the stored value for a viewpoint along with the profile version
// it was built for. ok is false when the viewpoint has no value yet.
func (c *Cache[V]) Get(viewpoint int) (v V, version uint64, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[viewpoint]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, 0, false
	}
	c.hits.Add(1)
	return e.value, e.version, true
}

// Put stores a value for a viewpoint if its version is at least as new as the
// stored one. It reports whether the value was accepted. Equal versions
// replace (a lazy synchronous build and the async rebuild may race to produce
// the same version; both results are identical by determinism of the build).
func (c *Cache[V]) Put(viewpoint int, v V, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[viewpoint]; ok && e.version > version {
		c.rejected.Add(1)
		return false
	}
	c.entries[viewpoint] = entry[V]{value: v, version: version}
	c.swaps.Add(1)
	return true
}

// Trim drops entries for viewpoints >= n. Called when a new profile lowers
// the viewpoint count.
func (c *Cache[V]) Trim(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k >= n {
			delete(c.entries, k)
		}
	}
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]entry[V])
}

// Len returns the number of cached viewpoints.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:  c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Swaps:    c.swaps.Load(),
		Rejected: c.rejected.Load(),
	}
}
