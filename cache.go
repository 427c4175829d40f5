package prefetch

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// Cache is the store consulted for cacheable GET requests. Implementations
// must be safe for concurrent use within one cycle.
type Cache interface {
	Get(key string) (*Response, bool)
	Set(key string, resp *Response, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

const cacheShardCount = 16

// MemoryCache is a sharded in-memory TTL cache. Expired entries are evicted
// lazily on read; there is no background sweeper.
type MemoryCache struct {
	shards [cacheShardCount]*cacheShard
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{store: make(map[string]*cacheEntry)}
	}
	return c
}

func (c *MemoryCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%cacheShardCount]
}

// Get returns the response stored under key. Absent and expired entries are
// misses; an expired entry is evicted before the miss is reported.
func (c *MemoryCache) Get(key string) (*Response, bool) {
	shard := c.shard(key)
	shard.mu.RLock()
	entry, ok := shard.store[key]
	shard.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		shard.mu.Lock()
		// Only evict the entry we saw; a concurrent Set may have replaced it.
		if current, ok := shard.store[key]; ok && current == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, false
	}
	return entry.response, true
}

// Set stores resp under key, overwriting any existing entry. The entry
// expires ttl from now.
func (c *MemoryCache) Set(key string, resp *Response, ttl time.Duration) {
	shard := c.shard(key)
	shard.mu.Lock()
	shard.store[key] = &cacheEntry{response: resp, expiresAt: time.Now().Add(ttl)}
	shard.mu.Unlock()
}

// Delete removes the entry for key.
func (c *MemoryCache) Delete(key string) {
	shard := c.shard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*cacheEntry)
		shard.mu.Unlock()
	}
}

// Len reports the number of stored entries, including any not yet evicted.
func (c *MemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// CacheKey builds the lookup key for a request from its method, full URL and
// serialized body. Headers never participate in the key.
func CacheKey(method, url string, body []byte) string {
	var b strings.Builder
	b.Grow(len(method) + len(url) + len(body) + 2)
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(url)
	b.WriteByte(':')
	b.Write(body)
	return b.String()
}
