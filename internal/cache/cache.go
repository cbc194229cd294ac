// File path: internal/cache/cache.go
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int `json:"hits"`
	Misses    int `json:"misses"`
	Evictions int `json:"evictions"`
	Expired   int `json:"expired"`
	Size      int `json:"size"`
}

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
}

// Cache is a size-bounded, TTL-bounded store keyed by content fingerprint.
// Recency policy is least-recently-used: Get refreshes an entry's position.
// Expired entries are purged lazily on access and on every Set; a full cache
// evicts exactly one entry before inserting.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	ll       *list.List
	stats    Stats
	now      func() time.Time
}

// New builds a cache holding at most size entries, each valid for ttl.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = 50
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache[V]{
		capacity: size,
		ttl:      ttl,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
		now:      time.Now,
	}
}

// Get returns the live entry for key, refreshing its recency. Entries past
// their TTL are removed and reported as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	ent := elem.Value.(*entry[V])
	if c.now().Sub(ent.createdAt) >= c.ttl {
		c.removeLocked(elem)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}
	c.ll.MoveToFront(elem)
	c.stats.Hits++
	return ent.value, true
}

// Set inserts or refreshes an entry. An update resets the entry's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.createdAt = c.now()
		c.ll.MoveToFront(elem)
		return
	}
	if c.ll.Len() >= c.capacity {
		if tail := c.ll.Back(); tail != nil {
			c.removeLocked(tail)
			c.stats.Evictions++
		}
	}
	elem := c.ll.PushFront(&entry[V]{key: key, value: value, createdAt: c.now()})
	c.items[key] = elem
}

// PurgeExpired sweeps every expired entry; safe to call from a ticker.
func (c *Cache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked()
}

// GetStats returns a copy of the counters plus current size.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Size = c.ll.Len()
	return stats
}

// Purge empties the cache without touching hit/miss counters.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.ll = list.New()
}

func (c *Cache[V]) purgeExpiredLocked() int {
	removed := 0
	for elem := c.ll.Back(); elem != nil; {
		prev := elem.Prev()
		ent := elem.Value.(*entry[V])
		if c.now().Sub(ent.createdAt) >= c.ttl {
			c.removeLocked(elem)
			c.stats.Expired++
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	c.ll.Remove(elem)
	ent := elem.Value.(*entry[V])
	delete(c.items, ent.key)
}

// Fingerprint produces a deterministic key from any JSON-marshalable value.
// Struct field order is fixed at compile time, so identical inputs always
// hash identically.
func Fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
