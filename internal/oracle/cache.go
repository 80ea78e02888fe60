package oracle

import (
	"sync"
	"time"
)

// Cache provides a TTL-based in-memory cache of markets keyed by slug, so
// a submission shortly after a listing can validate outcomes without a
// second fetch.
type Cache struct {
	mu      sync.RWMutex
	markets map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	market    Market
	fetchedAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		markets: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *Cache) Get(slug string) (Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.markets[slug]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return Market{}, false
	}
	return entry.market, true
}

func (c *Cache) SetAll(markets []Market) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, m := range markets {
		c.markets[m.Slug] = cacheEntry{
			market:    m,
			fetchedAt: now,
		}
	}
}

// All returns all non-expired entries.
func (c *Cache) All() []Market {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	result := make([]Market, 0, len(c.markets))
	for _, entry := range c.markets {
		if now.Sub(entry.fetchedAt) <= c.ttl {
			result = append(result, entry.market)
		}
	}
	return result
}
