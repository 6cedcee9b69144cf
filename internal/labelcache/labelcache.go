// Package labelcache provides a TTL-expiring, capacity-bounded, thread-safe
// cache for entity labels. Language is part of the key, so the same entity
// cached under two languages occupies two independent entries.
package labelcache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultTTL      = time.Hour
	DefaultCapacity = 5000
)

type key struct {
	id   string
	lang string
}

type entry struct {
	key        key
	value      string
	insertedAt time.Time
}

// Cache is a mutex-guarded LRU with lazy TTL expiry. Entries older than the
// TTL are treated as absent on read; inserts beyond capacity evict the
// least-recently-touched entry first.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	cap   int
	items map[key]*list.Element
	order *list.List // front = most recently used

	now func() time.Time
}

// New creates a Cache with the given TTL and capacity. Non-positive arguments
// fall back to the defaults.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		ttl:   ttl,
		cap:   capacity,
		items: make(map[key]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns the cached label for (id, lang). An entry past its TTL is
// purged and reported absent. A hit refreshes the entry's recency.
func (c *Cache) Get(id, lang string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{id: id, lang: lang}
	el, ok := c.items[k]
	if !ok {
		return "", false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.items, k)
		return "", false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// Set inserts or overwrites the label for (id, lang), stamps it with the
// current time, and evicts least-recently-used entries until the cache is
// within capacity.
func (c *Cache) Set(id, lang, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{id: id, lang: lang}
	if el, ok := c.items[k]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: k, value: value, insertedAt: c.now()})
	c.items[k] = el

	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Len reports the number of live entries, including any not yet lazily expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
