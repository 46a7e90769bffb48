// Package cache provides a bounded associative cache with a pluggable
// eviction policy.
//
// The same abstraction backs two different call sites: the pattern
// store's in-memory index (least-used eviction seeded from persisted
// usage counts) and the engine's recall-suggestion cache (LRU with a
// short TTL). Capacity, TTL, and policy are all configuration.
package cache

import (
	"sort"
	"time"
)

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// Policy selects which entries are evicted when the cache overflows.
type Policy int

const (
	// EvictLRU removes the entries with the oldest last use.
	EvictLRU Policy = iota
	// EvictLFU removes the entries with the fewest uses,
	// ties broken by oldest last use.
	EvictLFU
)

// Options configures a Cache.
type Options struct {
	// Capacity is the maximum number of entries. Zero means 100.
	Capacity int
	// TTL expires entries whose last use is older than this.
	// Zero disables expiry.
	TTL time.Duration
	// Policy picks eviction victims on overflow.
	Policy Policy
	// EvictBatch is how many entries one overflow evicts. Zero means 1.
	EvictBatch int
}

type entry[V any] struct {
	value    V
	uses     int
	lastUsed time.Time
}

// Cache is a bounded map with usage tracking. Not safe for concurrent
// use; callers serialize access (the engine runs caller-driven on a
// single control thread, and the pattern store holds its own lock).
type Cache[K comparable, V any] struct {
	opts    Options
	entries map[K]*entry[V]
}

// New creates an empty cache.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.EvictBatch <= 0 {
		opts.EvictBatch = 1
	}
	return &Cache[K, V]{opts: opts, entries: make(map[K]*entry[V])}
}

// Get returns the value for key and records a use. Expired entries are
// removed and reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		return zero, false
	}
	e.uses++
	e.lastUsed = timeNow()
	return e.value, true
}

// Peek returns the value for key without recording a use.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return zero, false
	}
	return e.value, true
}

// Put inserts or replaces the value for key with a fresh use count.
// It returns the keys evicted to make room, if any.
func (c *Cache[K, V]) Put(key K, value V) []K {
	return c.PutSeeded(key, value, 1, timeNow())
}

// PutSeeded inserts key with explicit usage metadata. The pattern
// store uses it to rebuild the index from persisted entries so that
// eviction respects usage counts that predate this process.
func (c *Cache[K, V]) PutSeeded(key K, value V, uses int, lastUsed time.Time) []K {
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.uses = uses
		e.lastUsed = lastUsed
		return nil
	}
	c.entries[key] = &entry[V]{value: value, uses: uses, lastUsed: lastUsed}
	if len(c.entries) <= c.opts.Capacity {
		return nil
	}
	return c.evict(c.opts.EvictBatch)
}

// Touch records a use for key without reading the value.
func (c *Cache[K, V]) Touch(key K) {
	if e, ok := c.entries[key]; ok {
		e.uses++
		e.lastUsed = timeNow()
	}
}

// Delete removes key, reporting whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Len reports the number of entries, including any not yet expired.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// ForEach visits every live entry. Returning false stops the walk.
// Visits do not count as uses.
func (c *Cache[K, V]) ForEach(fn func(key K, value V) bool) {
	for k, e := range c.entries {
		if c.expired(e) {
			continue
		}
		if !fn(k, e.value) {
			return
		}
	}
}

// PruneExpired removes entries past the TTL and returns their keys.
func (c *Cache[K, V]) PruneExpired() []K {
	var removed []K
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed = append(removed, k)
		}
	}
	return removed
}

func (c *Cache[K, V]) expired(e *entry[V]) bool {
	return c.opts.TTL > 0 && timeNow().Sub(e.lastUsed) > c.opts.TTL
}

// evict removes up to n entries chosen by the configured policy and
// returns their keys.
func (c *Cache[K, V]) evict(n int) []K {
	type candidate struct {
		key K
		e   *entry[V]
	}
	cands := make([]candidate, 0, len(c.entries))
	for k, e := range c.entries {
		cands = append(cands, candidate{k, e})
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i].e, cands[j].e
		switch c.opts.Policy {
		case EvictLFU:
			if a.uses != b.uses {
				return a.uses < b.uses
			}
			return a.lastUsed.Before(b.lastUsed)
		default: // EvictLRU
			return a.lastUsed.Before(b.lastUsed)
		}
	})

	if n > len(cands) {
		n = len(cands)
	}
	evicted := make([]K, 0, n)
	for _, cand := range cands[:n] {
		delete(c.entries, cand.key)
		evicted = append(evicted, cand.key)
	}
	return evicted
}
