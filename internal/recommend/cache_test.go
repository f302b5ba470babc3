// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"fmt"
	"testing"
	"time"
)

func cachedResponse(id string) *Response {
	return &Response{
		Items:    []ScoredProduct{{ProductID: id, Score: 1}},
		Metadata: ResponseMetadata{RequestID: id},
	}
}

func TestResponseCacheGetAdd(t *testing.T) {
	c := newResponseCache(10, time.Minute)

	if got := c.Get("k"); got != nil {
		t.Errorf("Get() on empty cache = %v, want nil", got)
	}

	c.Add("k", cachedResponse("r1"))
	got := c.Get("k")
	if got == nil || got.Metadata.RequestID != "r1" {
		t.Fatalf("Get() = %v, want cached r1", got)
	}

	// Returned copy must not alias the cached items slice.
	got.Items[0].ProductID = "mutated"
	if again := c.Get("k"); again.Items[0].ProductID == "mutated" {
		t.Error("cache returned aliased items slice")
	}
}

func TestResponseCacheTTLExpiry(t *testing.T) {
	c := newResponseCache(10, 10*time.Millisecond)

	c.Add("k", cachedResponse("r1"))
	time.Sleep(20 * time.Millisecond)

	if got := c.Get("k"); got != nil {
		t.Errorf("Get() after TTL = %v, want nil", got)
	}
}

func TestResponseCacheEvictsLRU(t *testing.T) {
	c := newResponseCache(2, time.Minute)

	c.Add("a", cachedResponse("a"))
	c.Add("b", cachedResponse("b"))

	// Touch a so b becomes least recently used.
	if c.Get("a") == nil {
		t.Fatal("expected a to be cached")
	}

	c.Add("c", cachedResponse("c"))

	if c.Get("b") != nil {
		t.Error("least recently used entry b not evicted")
	}
	if c.Get("a") == nil || c.Get("c") == nil {
		t.Error("expected a and c to survive eviction")
	}
}

func TestResponseCacheSweep(t *testing.T) {
	c := newResponseCache(10, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("k%d", i), cachedResponse("r"))
	}
	time.Sleep(20 * time.Millisecond)

	if removed := c.Sweep(); removed != 5 {
		t.Errorf("Sweep() removed %d, want 5", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", c.Len())
	}
}

func TestResponseCachePurge(t *testing.T) {
	c := newResponseCache(10, time.Minute)

	c.Add("a", cachedResponse("a"))
	c.Add("b", cachedResponse("b"))
	c.Purge()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after purge, want 0", c.Len())
	}
	if c.Get("a") != nil {
		t.Error("Get() returned entry after purge")
	}
}
