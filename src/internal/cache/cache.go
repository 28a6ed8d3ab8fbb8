package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// TagAPIData is applied to every cached search response. Invalidating it
// flushes all API-derived entries at once.
const TagAPIData = "api_data"

// Defaults, overridable through cache.ttl and cache.max_entries.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Entries   int   `json:"entries"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	key      string
	value    string
	storedAt time.Time
	ttl      time.Duration
	tags     []string
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// ResponseCache is a bounded in-process TTL cache with tag invalidation.
// Values are stored as serialized strings and entries are immutable once
// written. Expired entries are evicted lazily on access; once the entry
// bound is reached the least recently used entry is dropped.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	ttl        time.Duration
	hits       int64
	misses     int64
	evictions  int64
}

// NewResponseCache creates a cache with the given TTL and entry bound.
// Non-positive arguments fall back to the defaults.
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &ResponseCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the stored value when present and fresh. An expired entry
// is evicted and reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	ent := el.Value.(*entry)
	if ent.expired(time.Now()) {
		c.removeLocked(el)
		c.misses++
		return "", false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Set stores a value with storedAt set to now and the configured TTL.
// Storing past the entry bound evicts from the LRU tail.
func (c *ResponseCache) Set(ctx context.Context, key, value string, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	ent := &entry{
		key:      key,
		value:    value,
		storedAt: time.Now(),
		ttl:      c.ttl,
		tags:     tags,
	}
	c.entries[key] = c.lru.PushFront(ent)
	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}
}

// GetJSON unmarshals a fresh entry into dest. The boolean reports a hit.
func (c *ResponseCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals value and stores it under key.
func (c *ResponseCache) SetJSON(ctx context.Context, key string, value interface{}, tags ...string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.Set(ctx, key, string(raw), tags...)
	return nil
}

// Invalidate removes every entry whose tag set intersects the given
// tags and returns how many were removed.
func (c *ResponseCache) Invalidate(ctx context.Context, tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	lookup := make(map[string]bool, len(tags))
	for _, t := range tags {
		lookup[t] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*entry)
		for _, t := range ent.tags {
			if lookup[t] {
				c.removeLocked(el)
				removed++
				break
			}
		}
		el = next
	}
	return removed
}

// CleanExpired sweeps every expired entry and returns how many were
// removed. The server runs this periodically; lazy eviction on access
// remains the primary path.
func (c *ResponseCache) CleanExpired(ctx context.Context) int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).expired(now) {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Stats returns the current counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   len(c.entries),
		Evictions: c.evictions,
	}
}

// removeLocked drops an element from both indexes. The caller holds
// c.mu.
func (c *ResponseCache) removeLocked(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
