// Package cache provides the bounded LRU used to memoize per-table codec maps.
package cache

import (
	"container/list"
	"sync"
)

// Cache is a generic LRU cache.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Len() int
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int
}

// DefaultConfig returns the configuration used for codec maps.
func DefaultConfig() Config {
	return Config{MaxSize: 256}
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

type lruCache[K comparable, V any] struct {
	mu      sync.Mutex
	config  Config
	entries map[K]*list.Element
	order   *list.List
	stats   Stats
}

// NewLRUCache creates a thread-safe LRU cache.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:  config,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry[K, V]).value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	if c.config.MaxSize > 0 && c.order.Len() > c.config.MaxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[K, V]).key)
			c.stats.Evictions++
		}
	}
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// CodecKey identifies the codec map of one table of one schema. Schema holds
// the schema pointer; any comparable identity works.
type CodecKey struct {
	Schema any
	Table  string
}

// CodecCache memoizes column-name to codec maps.
type CodecCache[C any] struct {
	cache Cache[CodecKey, map[string]C]
}

// NewCodecCache creates a codec map cache.
func NewCodecCache[C any](config Config) *CodecCache[C] {
	return &CodecCache[C]{cache: NewLRUCache[CodecKey, map[string]C](config)}
}

// Get returns the cached codec map for key.
func (c *CodecCache[C]) Get(key CodecKey) (map[string]C, bool) {
	return c.cache.Get(key)
}

// Put stores a codec map. Callers must not modify the map afterwards.
func (c *CodecCache[C]) Put(key CodecKey, codecs map[string]C) {
	c.cache.Put(key, codecs)
}

// Stats returns cache statistics.
func (c *CodecCache[C]) Stats() Stats {
	return c.cache.Stats()
}
