package imagegen

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CardCache keeps rendered cards in memory until their TTL passes.
type CardCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCardCache(ttl time.Duration, clock clockwork.Clock) *CardCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CardCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached card if it has not expired.
func (c *CardCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores a card and drops expired entries.
func (c *CardCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{data: data, expiresAt: now.Add(c.ttl)}
}

func (c *CardCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
