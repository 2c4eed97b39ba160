package forecastcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a size-bounded in-process cache whose entries expire after a TTL.
// Entries are shared between callers and must be treated as read-only.
type LRU struct {
	cache *expirable.LRU[string, *Entry]
}

// NewLRU creates an LRU holding at most size entries. A ttl of 0 disables expiry.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{
		cache: expirable.NewLRU[string, *Entry](size, nil, ttl),
	}
}

func (c *LRU) Get(_ context.Context, key string) (*Entry, error) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (c *LRU) Set(_ context.Context, key string, entry *Entry) error {
	c.cache.Add(key, entry)
	return nil
}

// Len returns the number of live entries
func (c *LRU) Len() int {
	return c.cache.Len()
}

func (c *LRU) Backend() string {
	return "lru"
}

func (c *LRU) Close() error {
	c.cache.Purge()
	return nil
}
