// Package cache keeps analysis results keyed by the archive's content digest
// and the options that shape the analysis, so an unchanged archive is never
// re-analyzed.
package cache

import (
	"container/list"
	"errors"
	"sync"
)

// ErrKeyNotFound is returned when nothing usable is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// blob is one encoded result held by the memory layer.
type blob struct {
	key  string
	data []byte
}

// LRUCache holds encoded results in memory, bounded by entry count and by
// total encoded size. A zero bound is no bound.
type LRUCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	size     int
	maxItems int
	maxBytes int
	evicted  int64
}

// Options bounds the memory layer.
type Options struct {
	MaxSize  int
	MaxBytes int
}

// New creates an empty cache.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: opts.MaxSize,
		maxBytes: opts.MaxBytes,
	}
}

// Get returns the bytes stored under key and marks them recently used. The
// slice is shared; callers decode it and must not modify it.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*blob).data, true
}

// Set stores data under key, evicting the least recently used entries while
// a bound is exceeded. data larger than MaxBytes on its own is not kept.
func (c *LRUCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	if c.maxBytes > 0 && len(data) > c.maxBytes {
		return
	}
	c.items[key] = c.order.PushFront(&blob{key: key, data: data})
	c.size += len(data)

	for c.overLimit() {
		c.remove(c.order.Back())
		c.evicted++
	}
}

// Delete removes key.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Clear removes every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the total encoded size of the entries.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Keys returns the keys from most to least recently used.
func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*blob).key)
	}
	return keys
}

func (c *LRUCache) evictedCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted
}

func (c *LRUCache) overLimit() bool {
	if c.order.Len() == 0 {
		return false
	}
	return (c.maxItems > 0 && c.order.Len() > c.maxItems) ||
		(c.maxBytes > 0 && c.size > c.maxBytes)
}

func (c *LRUCache) remove(el *list.Element) {
	b := c.order.Remove(el).(*blob)
	delete(c.items, b.key)
	c.size -= len(b.data)
}

// Stats describes the cache's memory layer and its hit rate.
type Stats struct {
	Length    int   `json:"length"`
	Bytes     int   `json:"bytes"`
	Evicted   int64 `json:"evicted"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}
