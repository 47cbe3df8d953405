// Package dedup remembers recently seen message ids so that redelivered messages are processed once.
package dedup

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity matches the number of ids kept per node by default.
const DefaultCapacity = 1000

type entry struct {
	id   uuid.UUID
	seen time.Time
}

// Cache is a fixed-capacity FIFO of ids with O(1) membership checks.
// When full, recording a new id evicts the oldest one. When maxAge is set,
// entries older than maxAge no longer count as seen.
type Cache struct {
	mu     sync.Mutex
	ring   []entry
	head   int // index of the oldest entry
	size   int
	index  map[uuid.UUID]int // id -> slot in ring
	maxAge time.Duration
	now    func() time.Time
}

func New(capacity int, maxAge time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		ring:   make([]entry, capacity),
		index:  make(map[uuid.UUID]int, capacity),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Seen reports whether id was recorded and has not been evicted or expired.
func (c *Cache) Seen(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire()
	_, ok := c.index[id]
	return ok
}

// Record adds id to the cache. Recording an id that is already present is a no-op.
func (c *Cache) Record(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire()
	if _, ok := c.index[id]; ok {
		return
	}
	c.push(id)
}

// CheckAndRecord atomically tests id and records it. It returns true if id was already seen.
func (c *Cache) CheckAndRecord(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire()
	if _, ok := c.index[id]; ok {
		return true
	}
	c.push(id)
	return false
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire()
	return c.size
}

func (c *Cache) Cap() int {
	return len(c.ring)
}

func (c *Cache) push(id uuid.UUID) {
	if c.size == len(c.ring) {
		c.evictOldest()
	}
	slot := (c.head + c.size) % len(c.ring)
	c.ring[slot] = entry{id: id, seen: c.now()}
	c.index[id] = slot
	c.size++
}

func (c *Cache) evictOldest() {
	old := c.ring[c.head]
	delete(c.index, old.id)
	c.ring[c.head] = entry{}
	c.head = (c.head + 1) % len(c.ring)
	c.size--
}

// expire drops entries from the old end while they are past maxAge.
// Entries are appended in time order so the scan stops at the first fresh one.
func (c *Cache) expire() {
	if c.maxAge <= 0 {
		return
	}
	cutoff := c.now().Add(-c.maxAge)
	for c.size > 0 && c.ring[c.head].seen.Before(cutoff) {
		c.evictOldest()
	}
}
