package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"cfd-hedge-backtest/internal/model"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is an in-memory TTL cache. A nil *Cache is valid and caches nothing.
// MaxEntries, when positive, bounds the store; the entry closest to expiry
// is evicted first.
type Cache[V any] struct {
	mu         sync.RWMutex
	store      map[string]*cacheEntry[V]
	ttl        time.Duration
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewCache[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	c := &Cache[V]{
		store:      make(map[string]*cacheEntry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// ResponseCache holds FMP price histories.
//
// ⚠️ WARNING: This cache is for LOCAL DEVELOPMENT ONLY.
//
// Check the FMP terms of use before enabling it. It is automatically
// disabled when API_ENV=production.
type ResponseCache = Cache[[]model.DatedValue]

var globalCache *ResponseCache
var cacheOnce sync.Once

// GetCache returns the global response cache if caching is enabled.
// Returns nil if caching is disabled.
func GetCache() *ResponseCache {
	// Only enable cache if explicitly enabled via environment variable
	// AND only outside production
	if os.Getenv("ENABLE_FMP_CACHE") != "true" {
		return nil
	}
	if os.Getenv("API_ENV") == "production" {
		return nil
	}

	cacheOnce.Do(func() {
		ttl := 24 * time.Hour
		if ttlStr := os.Getenv("FMP_CACHE_TTL"); ttlStr != "" {
			if parsed, err := time.ParseDuration(ttlStr); err == nil {
				ttl = parsed
			}
		}
		globalCache = NewCache[[]model.DatedValue](ttl, 0)
	})
	return globalCache
}

// Get retrieves a cached value if available and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value for ttl; a non-positive ttl uses the cache default.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && c.maxEntries > 0 && len(c.store) >= c.maxEntries {
		c.evictLocked()
	}
	c.store[key] = &cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries from the cache
func (c *Cache[V]) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*cacheEntry[V])
}

// Close stops the background cleanup.
func (c *Cache[V]) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.store {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.store, oldestKey)
}

// cleanup periodically removes expired entries
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.store {
				if now.After(entry.expiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// GenerateCacheKey creates a deterministic cache key from its parts.
func GenerateCacheKey(parts ...any) string {
	keyStr := ""
	for i, p := range parts {
		if i > 0 {
			keyStr += ":"
		}
		keyStr += fmt.Sprintf("%v", p)
	}
	// Hash the key to keep it reasonably sized
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])
}
