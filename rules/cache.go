package rules

import "time"

// SchemaCache holds parsed schemas keyed by name and source fingerprint.
// A fingerprint identifies one version of a schema source (file mod time and size,
// or a database version), so a changed source never matches a cached entry.
type SchemaCache interface {
	// Get returns the cached schema for name if it was stored with fingerprint
	Get(name, fingerprint string) (*Schema, bool)

	// Set stores a schema for name at fingerprint, replacing older versions
	Set(name, fingerprint string, schema *Schema)

	// Invalidate drops the cached schema for name
	Invalidate(name string)

	// Purge drops every cached schema
	Purge()

	// Len returns the number of cached schemas
	Len() int
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// Size bounds the number of cached schemas; least recently used entries are evicted
	Size int

	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (fingerprint changes and manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults for schema caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size: 256,
		TTL:  0,
	}
}
