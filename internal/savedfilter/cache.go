package savedfilter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/worktrack/worktrack/pkg/model"
)

// CacheConfig contains configuration for the saved filter cache
type CacheConfig struct {
	// Size is the maximum number of cached filters
	Size int `yaml:"size"`
	// TTL is the time-to-live for positive cache entries
	TTL time.Duration `yaml:"ttl"`
	// NegativeTTL is the time-to-live for negative cache entries
	NegativeTTL time.Duration `yaml:"negative_ttl"`
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:        1000,
		TTL:         5 * time.Minute,
		NegativeTTL: 30 * time.Second,
	}
}

// Cache provides a read-through cache over a Store for filter lookups by key.
type Cache struct {
	store         Store
	config        CacheConfig
	now           func() time.Time
	mu            sync.RWMutex
	entries       map[Key]*cacheEntry
	negativeCache map[Key]time.Time
}

type cacheEntry struct {
	filter    *SavedFilter
	expiresAt time.Time
}

// NewCache creates a new Cache with the given store and configuration
func NewCache(store Store, config CacheConfig) *Cache {
	defaults := DefaultCacheConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.NegativeTTL <= 0 {
		config.NegativeTTL = defaults.NegativeTTL
	}

	return &Cache{
		store:         store,
		config:        config,
		now:           time.Now,
		entries:       make(map[Key]*cacheEntry),
		negativeCache: make(map[Key]time.Time),
	}
}

// Get retrieves a filter by key, using cache when available
func (c *Cache) Get(ctx context.Context, key Key) (*SavedFilter, error) {
	now := c.now()

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		c.mu.RUnlock()
		return clone(entry.filter), nil
	}
	if expiresAt, ok := c.negativeCache[key]; ok && now.Before(expiresAt) {
		c.mu.RUnlock()
		return nil, model.ErrNotFound
	}
	c.mu.RUnlock()

	f, err := c.store.Get(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		c.mu.Lock()
		c.negativeCache[key] = c.now().Add(c.config.NegativeTTL)
		c.evictIfNeeded()
		c.mu.Unlock()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.Put(f)
	return f, nil
}

// Put stores f in the cache and clears any negative entry for its key.
func (c *Cache) Put(f *SavedFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[f.Key()] = &cacheEntry{
		filter:    clone(f),
		expiresAt: c.now().Add(c.config.TTL),
	}
	delete(c.negativeCache, f.Key())
	c.evictIfNeeded()
}

// Invalidate removes a key from the positive and negative caches
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	delete(c.negativeCache, key)
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*cacheEntry)
	c.negativeCache = make(map[Key]time.Time)
}

// Size returns the current number of cached filters
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictIfNeeded removes expired entries and evicts oldest if over capacity
// Caller must hold write lock
func (c *Cache) evictIfNeeded() {
	now := c.now()

	for key, expiresAt := range c.negativeCache {
		if now.After(expiresAt) {
			delete(c.negativeCache, key)
		}
	}

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	for len(c.entries) > c.config.Size {
		var oldest Key
		var oldestTime time.Time
		found := false

		for key, entry := range c.entries {
			if !found || entry.expiresAt.Before(oldestTime) {
				oldest = key
				oldestTime = entry.expiresAt
				found = true
			}
		}
		delete(c.entries, oldest)
	}
}
