package cache

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe, size-bounded LRU Store.
type MemoryStore[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*node[V]
	head       *node[V] // most recently used
	tail       *node[V] // least recently used
}

type node[V any] struct {
	key   string
	entry Entry[V]
	prev  *node[V]
	next  *node[V]
}

// NewMemoryStore creates an LRU store holding at most maxEntries keys.
func NewMemoryStore[V any](maxEntries int) *MemoryStore[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryStore[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*node[V]),
	}
}

func (c *MemoryStore[V]) Get(_ context.Context, key string) (Entry[V], bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false, nil
	}
	c.moveToFront(n)
	return n.entry, true, nil
}

func (c *MemoryStore[V]) Set(_ context.Context, key string, e Entry[V]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.entry = e
		c.moveToFront(n)
		return nil
	}

	n := &node[V]{key: key, entry: e}
	c.entries[key] = n
	c.addToFront(n)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

func (c *MemoryStore[V]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(n)
	}
	return nil
}

// Len returns the number of stored keys.
func (c *MemoryStore[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryStore[V]) moveToFront(n *node[V]) {
	if n == c.head {
		return
	}
	c.remove(n)
	c.addToFront(n)
}

func (c *MemoryStore[V]) addToFront(n *node[V]) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *MemoryStore[V]) remove(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *MemoryStore[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
