package rules

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	fingerprint string
	schema      *Schema
	cachedAt    time.Time
}

// InMemorySchemaCache is a size-bounded LRU implementation of SchemaCache.
// Thread-safe for concurrent access.
type InMemorySchemaCache struct {
	entries *lru.Cache[string, cacheEntry]
	config  CacheConfig
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewInMemorySchemaCache creates a new in-memory schema cache
func NewInMemorySchemaCache(config CacheConfig) (*InMemorySchemaCache, error) {
	if config.Size <= 0 {
		config.Size = DefaultCacheConfig().Size
	}
	entries, err := lru.New[string, cacheEntry](config.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &InMemorySchemaCache{
		entries: entries,
		config:  config,
		now:     time.Now,
	}, nil
}

// Get returns the cached schema when the fingerprint matches and the entry has not expired
func (c *InMemorySchemaCache) Get(name, fingerprint string) (*Schema, bool) {
	entry, ok := c.entries.Get(name)
	if !ok || entry.fingerprint != fingerprint {
		c.misses.Add(1)
		return nil, false
	}

	if c.config.TTL > 0 && c.now().Sub(entry.cachedAt) > c.config.TTL {
		c.entries.Remove(name)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.schema, true
}

// Set stores a schema
func (c *InMemorySchemaCache) Set(name, fingerprint string, schema *Schema) {
	c.entries.Add(name, cacheEntry{
		fingerprint: fingerprint,
		schema:      schema,
		cachedAt:    c.now(),
	})
}

// Invalidate drops one schema
func (c *InMemorySchemaCache) Invalidate(name string) {
	c.entries.Remove(name)
}

// Purge clears the cache
func (c *InMemorySchemaCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached schemas
func (c *InMemorySchemaCache) Len() int {
	return c.entries.Len()
}

// Stats returns the hit and miss counts since the cache was created
func (c *InMemorySchemaCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
