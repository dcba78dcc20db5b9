// Package blockcache implements a size-bounded LRU of raw raster blocks shared
// by every source of a registry.
package blockcache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
)

// ErrEntryTooLarge is returned when a single block is larger than the whole
// cache.
var ErrEntryTooLarge = errors.New("block larger than cache capacity")

// Owner is the stable integer key of a cache client, assigned at
// registration. The cache never holds a pointer to its owners.
type Owner uint32

// Entry is one cached block. Data and Loaded are filled by the owner under its
// own lock; the cache only tracks placement and size.
type Entry struct {
	Owner  Owner
	Offset int64
	Size   int
	Data   []byte
	Loaded bool

	elem *list.Element
}

type entryKey struct {
	owner  Owner
	offset int64
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is an LRU of blocks bounded by total byte size.
type Cache struct {
	mu      sync.Mutex
	entries map[entryKey]*Entry
	lru     *list.List // front = most recently used
	size    int64
	maxSize int64
	stats   Stats
}

// New creates a cache holding at most maxBytes of block data.
func New(maxBytes int64) *Cache {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &Cache{
		entries: make(map[entryKey]*Entry),
		lru:     list.New(),
		maxSize: maxBytes,
	}
}

// Get returns the entry for (owner, offset). On a hit the entry is promoted to
// most recently used. On a miss, least recently used entries are evicted until
// size more bytes fit and a new unloaded entry is inserted.
func (c *Cache) Get(owner Owner, offset int64, size int) (*Entry, error) {
	key := entryKey{owner: owner, offset: offset}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.lru.MoveToFront(e.elem)
		c.stats.Hits++
		return e, nil
	}

	if size < 0 || int64(size) > c.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrEntryTooLarge, size, c.maxSize)
	}

	for c.size+int64(size) > c.maxSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.remove(back.Value.(*Entry))
		c.stats.Evictions++
	}

	e := &Entry{Owner: owner, Offset: offset, Size: size}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
	c.size += int64(size)
	c.stats.Misses++
	return e, nil
}

func (c *Cache) remove(e *Entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, entryKey{owner: e.Owner, offset: e.Offset})
	c.size -= int64(e.Size)
	e.elem = nil
}

// Purge drops every entry of owner, returning the number removed.
func (c *Cache) Purge(owner Owner) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*Entry); e.Owner == owner {
			c.remove(e)
			n++
		}
		el = next
	}
	return n
}

// OwnerEntries returns the number of entries currently held for owner.
func (c *Cache) OwnerEntries(owner Owner) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if k.owner == owner {
			n++
		}
	}
	return n
}

// Size returns the total size in bytes of cached entries.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MaxSize returns the capacity in bytes.
func (c *Cache) MaxSize() int64 {
	return c.maxSize
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
