package router

import (
	"container/list"
	"sync"
)

// lruCache is the bounded match-result cache in front of the matcher.
// Eviction is strict LRU: a hit promotes the entry, an insert over
// capacity evicts the least recently used one.
type lruCache[T any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	eviction *list.List
}

// lruEntry is one cached match result.
type lruEntry[T any] struct {
	key    string
	value  T
	params map[string]string
}

func newLRUCache[T any](capacity int) *lruCache[T] {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &lruCache[T]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// get returns the cached result and promotes its recency. The params
// map is copied so concurrent handlers never share mutable state.
func (c *lruCache[T]) get(key string) (T, map[string]string, bool) {
	metrics := getCacheMetrics()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		metrics.misses.Inc()
		var zero T
		return zero, nil, false
	}

	c.eviction.MoveToFront(elem)
	metrics.hits.Inc()

	entry := elem.Value.(*lruEntry[T])
	return entry.value, copyParams(entry.params), true
}

// put inserts a match result, evicting the least recently used entry
// when at capacity.
func (c *lruCache[T]) put(key string, value T, params map[string]string) {
	metrics := getCacheMetrics()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[T])
		entry.value = value
		entry.params = copyParams(params)
		return
	}

	if c.eviction.Len() >= c.capacity {
		c.evictOldest()
		metrics.evictions.Inc()
	}

	elem := c.eviction.PushFront(&lruEntry[T]{
		key:    key,
		value:  value,
		params: copyParams(params),
	})
	c.items[key] = elem
	metrics.size.Set(float64(len(c.items)))
}

// evictOldest removes the least recently used entry. Callers must hold
// the lock.
func (c *lruCache[T]) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*lruEntry[T])
	delete(c.items, entry.key)
	c.eviction.Remove(elem)
}

// clear drops every entry.
func (c *lruCache[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	getCacheMetrics().size.Set(0)
}

// len returns the number of cached entries.
func (c *lruCache[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// copyParams returns a defensive copy of a params map.
func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
