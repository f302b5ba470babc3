// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"sync"
	"time"

	"shopgraph/internal/metrics"
)

// cacheEntry is a node in the response cache's doubly-linked list.
type cacheEntry struct {
	key       string
	response  *Response
	prev      *cacheEntry
	next      *cacheEntry
	expiresAt time.Time
}

// responseCache is a thread-safe LRU cache with TTL for recommendation
// responses. Get, Add and eviction are all O(1): a doubly-linked list keeps
// recency order and a map provides lookup. Expired entries are dropped
// lazily on access and swept periodically by the janitor service.
type responseCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*cacheEntry

	// head.next is the most recently used, tail.prev the least.
	head *cacheEntry
	tail *cacheEntry
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &responseCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry, capacity),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns a copy of the cached response, or nil. Copies keep callers
// from mutating shared items slices.
func (c *responseCache) Get(key string) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		metrics.CacheMisses.Inc()
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		metrics.CacheMisses.Inc()
		return nil
	}

	c.moveToFront(entry)
	metrics.CacheHits.Inc()
	return copyResponse(entry.response)
}

// Add stores a response, evicting the least recently used entry at
// capacity.
func (c *responseCache) Add(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.response = resp
		entry.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.removeEntry(c.tail.prev)
	}

	entry := &cacheEntry{
		key:       key,
		response:  resp,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = entry
	c.pushFront(entry)
	metrics.CacheEntries.Set(float64(len(c.items)))
}

// Sweep removes expired entries and returns how many were dropped.
func (c *responseCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Purge drops every entry.
func (c *responseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	metrics.CacheEntries.Set(0)
}

// Len returns the current entry count, including not-yet-swept expired
// entries.
func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// removeEntry unlinks an entry. Must be called with mu held.
func (c *responseCache) removeEntry(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
	metrics.CacheEntries.Set(float64(len(c.items)))
}

// pushFront links an entry as most recently used. Must be called with mu
// held.
func (c *responseCache) pushFront(entry *cacheEntry) {
	entry.next = c.head.next
	entry.prev = c.head
	c.head.next.prev = entry
	c.head.next = entry
}

// moveToFront marks an entry as most recently used. Must be called with mu
// held.
func (c *responseCache) moveToFront(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.pushFront(entry)
}

func copyResponse(resp *Response) *Response {
	items := make([]ScoredProduct, len(resp.Items))
	copy(items, resp.Items)

	degraded := make([]DegradedSource, len(resp.Degraded))
	copy(degraded, resp.Degraded)
	if len(degraded) == 0 {
		degraded = nil
	}

	return &Response{
		Items:    items,
		Degraded: degraded,
		Metadata: resp.Metadata,
	}
}
