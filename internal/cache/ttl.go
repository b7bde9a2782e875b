// Package cache holds the single cached analysis result between pipeline
// runs. Analysis over a 10-day window is expensive relative to how fast the
// data changes, so the serving layer reuses one result until it expires or
// a live event invalidates it.
package cache

import (
	"sync"
	"time"

	"univ3-liquidity-lab/internal/pipeline"
)

// DefaultTTL matches the cadence at which a refreshed analysis is worth
// recomputing.
const DefaultTTL = 10 * time.Minute

// ResultCache is a single-slot cache with expiry. Safe for concurrent use.
type ResultCache struct {
	mu        sync.Mutex
	value     *pipeline.Result
	storedAt  time.Time
	expiresAt time.Time
	ttl       time.Duration
	clock     func() time.Time
}

// New creates a cache with the given TTL; ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{ttl: ttl, clock: time.Now}
}

// Get returns the cached result if present and unexpired.
func (c *ResultCache) Get() (*pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || c.clock().After(c.expiresAt) {
		return nil, false
	}
	return c.value, true
}

// Set stores a result and resets the expiry.
func (c *ResultCache) Set(result *pipeline.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	c.value = result
	c.storedAt = now
	c.expiresAt = now.Add(c.ttl)
}

// Invalidate drops the cached result so the next request recomputes.
func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}

// Age reports how long ago the cached result was stored. Zero when empty.
func (c *ResultCache) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		return 0
	}
	return c.clock().Sub(c.storedAt)
}
