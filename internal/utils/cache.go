package utils

import (
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem wraps a cached value with its expiry.
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// GlobalCache is a process-local LRU cache with per-entry TTLs. It
// backs the markdown render path so hot posts are not re-rendered and
// re-sanitized on every read.
type GlobalCache struct {
	lruCache *lru.Cache[string, CacheItem]
}

var cacheInstance *GlobalCache

// GetCache returns the singleton cache instance.
func GetCache() *GlobalCache {
	if cacheInstance == nil {
		l, err := lru.New[string, CacheItem](500)
		if err != nil {
			log.Fatalf("Failed to create LRU cache: %v", err)
		}
		cacheInstance = &GlobalCache{
			lruCache: l,
		}
	}
	return cacheInstance
}

// Set stores data under key for at most ttl.
func (c *GlobalCache) Set(key string, data interface{}, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// Get returns the cached value, or nil when absent or expired.
func (c *GlobalCache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Delete drops the entry for key.
func (c *GlobalCache) Delete(key string) {
	c.lruCache.Remove(key)
}
