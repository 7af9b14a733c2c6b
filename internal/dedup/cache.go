// Package dedup remembers recently delivered webhook message ids so retried
// deliveries are acknowledged without being processed twice.
package dedup

import "sync"

// DefaultCapacity is the number of ids retained.
const DefaultCapacity = 100

// Cache is a bounded, insertion-ordered set of message ids. When full, the
// oldest inserted id is evicted first. Lookups do not refresh an id's position.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ring     []string
	head     int // index of the oldest id
	size     int
	index    map[string]struct{}
}

// New creates a Cache holding at most capacity ids (DefaultCapacity if <= 0).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ring:     make([]string, capacity),
		index:    make(map[string]struct{}, capacity),
	}
}

// Seen reports whether id is currently remembered.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[id]
	return ok
}

// Remember inserts id. Remembering an id already present is a no-op.
func (c *Cache) Remember(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(id)
}

// CheckAndRemember reports whether id was already remembered and inserts it
// if not, as a single atomic step.
func (c *Cache) CheckAndRemember(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[id]; ok {
		return true
	}
	c.insert(id)
	return false
}

// Len returns the number of remembered ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the maximum number of remembered ids.
func (c *Cache) Capacity() int { return c.capacity }

// insert must be called with c.mu held.
func (c *Cache) insert(id string) {
	if _, ok := c.index[id]; ok {
		return
	}
	if c.size == c.capacity {
		delete(c.index, c.ring[c.head])
		c.ring[c.head] = id
		c.head = (c.head + 1) % c.capacity
	} else {
		c.ring[(c.head+c.size)%c.capacity] = id
		c.size++
	}
	c.index[id] = struct{}{}
}
