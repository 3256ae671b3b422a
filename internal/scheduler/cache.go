package scheduler

import (
	"sync"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// resultCache keeps recent check results so that bursts of refresh
// requests reuse one probe instead of hammering the target.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result   *models.CheckResult
	storedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(name string) (*models.CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok || time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

func (c *resultCache) put(name string, result *models.CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cacheEntry{result: result, storedAt: time.Now()}
}

func (c *resultCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// sweep drops expired entries. Called periodically so the map does not
// grow with long-deleted targets.
func (c *resultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, e := range c.entries {
		if time.Since(e.storedAt) > c.ttl {
			delete(c.entries, name)
		}
	}
}
