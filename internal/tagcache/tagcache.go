// Package tagcache memoizes the tag-count aggregation for a short TTL.
// Tag counts back a hot listing endpoint but only change on tag writes
// and scans, so a small window of staleness buys a large reduction in
// aggregate queries. Writers call Invalidate so their own subsequent
// reads see fresh counts immediately.
package tagcache

import (
	"context"
	"sync"
	"time"

	"tagify/internal/database"
	"tagify/internal/metrics"
)

// ComputeFunc produces fresh tag counts, typically Database.TagCounts.
type ComputeFunc func(ctx context.Context) ([]database.TagCount, error)

// Cache is a single-value TTL cache over the tag-count aggregation.
type Cache struct {
	ttl     time.Duration
	compute ComputeFunc
	now     func() time.Time

	mu      sync.Mutex
	counts  []database.TagCount
	expires time.Time
	valid   bool
}

// New returns a cache that recomputes counts at most once per ttl.
func New(ttl time.Duration, compute ComputeFunc) *Cache {
	return &Cache{
		ttl:     ttl,
		compute: compute,
		now:     time.Now,
	}
}

// Get returns the cached counts, recomputing them first if the entry
// is missing, expired, or invalidated. The lock is held across the
// recompute, so concurrent cold readers share a single aggregation
// run. A failed recompute leaves the cache empty so the next call
// retries.
func (c *Cache) Get(ctx context.Context) ([]database.TagCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Before(c.expires) {
		metrics.TagCacheHits.Inc()
		return c.counts, nil
	}

	metrics.TagCacheMisses.Inc()

	counts, err := c.compute(ctx)
	if err != nil {
		c.valid = false
		return nil, err
	}

	c.counts = counts
	c.expires = c.now().Add(c.ttl)
	c.valid = true
	return counts, nil
}

// Invalidate drops the cached entry. The next Get recomputes even if
// the TTL has not elapsed.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.counts = nil
	c.mu.Unlock()
	metrics.TagCacheInvalidations.Inc()
}
