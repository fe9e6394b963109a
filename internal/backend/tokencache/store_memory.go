package tokencache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryCache is the default in-process token store. Suitable for a single
// gateway instance; use RedisCache when instances share tokens.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	// expirySlack keeps us from handing out a token about to expire
	// mid-request.
	expirySlack time.Duration
}

// NewMemoryCache constructs an empty in-memory token cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:     make(map[string]memoryEntry),
		expirySlack: 30 * time.Second,
	}
}

func (c *MemoryCache) Get(_ context.Context, tenant string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenant]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt.Add(-c.expirySlack)) {
		return "", false, nil
	}
	return entry.token, true, nil
}

func (c *MemoryCache) Set(_ context.Context, tenant, token string, expiresAt time.Time) error {
	c.mu.Lock()
	c.entries[tenant] = memoryEntry{token: token, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}
