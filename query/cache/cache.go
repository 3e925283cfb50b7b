package cache

import (
	"context"
	"sync"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// MemoryBackend is an in-process LRU backend bounded by entry count.
type MemoryBackend struct {
	mu      sync.Mutex
	data    map[string]*cacheNode
	maxSize int
	head    *cacheNode
	tail    *cacheNode
	stats   Stats
}

// cacheNode represents a node in the doubly-linked list for LRU
type cacheNode struct {
	key   string
	value Payload
	prev  *cacheNode
	next  *cacheNode
}

// DefaultMemorySize bounds a MemoryBackend created with a non-positive size.
const DefaultMemorySize = 10000

// NewMemoryBackend creates an LRU backend holding at most maxSize entries
// across all bins.
func NewMemoryBackend(maxSize int) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = DefaultMemorySize
	}
	return &MemoryBackend{
		data:    make(map[string]*cacheNode),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
	}
}

func binKey(bin, key string) string {
	return bin + ":" + key
}

// Get retrieves a value from the cache
func (c *MemoryBackend) Get(_ context.Context, bin, key string) (Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.data[binKey(bin, key)]
	if !ok {
		c.stats.Misses++
		return Payload{}, ErrMiss
	}

	// Move to front (most recently used)
	c.moveToFront(node)
	c.stats.Hits++
	return node.value, nil
}

// Set stores a value in the cache
func (c *MemoryBackend) Set(_ context.Context, bin, key string, p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := binKey(bin, key)
	if node, exists := c.data[k]; exists {
		node.value = p
		c.moveToFront(node)
		return nil
	}

	if len(c.data) >= c.maxSize {
		c.evictLRU()
		c.stats.Evictions++
	}

	node := &cacheNode{key: k, value: p}
	c.addToFront(node)
	c.data[k] = node
	return nil
}

// Delete removes a specific key from the cache
func (c *MemoryBackend) Delete(_ context.Context, bin, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[binKey(bin, key)]; ok {
		c.removeNode(node)
	}
	return nil
}

// Stats returns cache statistics
func (c *MemoryBackend) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// addToFront adds a node to the front of the list
func (c *MemoryBackend) addToFront(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// moveToFront moves a node to the front of the list
func (c *MemoryBackend) moveToFront(node *cacheNode) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.addToFront(node)
}

func (c *MemoryBackend) unlink(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

// removeNode removes a node from the list and the index
func (c *MemoryBackend) removeNode(node *cacheNode) {
	c.unlink(node)
	delete(c.data, node.key)
}

// evictLRU evicts the least recently used node
func (c *MemoryBackend) evictLRU() {
	if c.tail != nil {
		c.removeNode(c.tail)
	}
}

// StubBackend keeps every entry in a plain map for the lifetime of the
// value. It never evicts and is not shared with other processes.
type StubBackend struct {
	mu   sync.RWMutex
	bins map[string]map[string]Payload
}

// NewStubBackend creates an empty StubBackend.
func NewStubBackend() *StubBackend {
	return &StubBackend{bins: make(map[string]map[string]Payload)}
}

func (s *StubBackend) Get(_ context.Context, bin, key string) (Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.bins[bin][key]; ok {
		return p, nil
	}
	return Payload{}, ErrMiss
}

func (s *StubBackend) Set(_ context.Context, bin, key string, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bins[bin]
	if !ok {
		b = make(map[string]Payload)
		s.bins[bin] = b
	}
	b[key] = p
	return nil
}

func (s *StubBackend) Delete(_ context.Context, bin, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bins[bin], key)
	return nil
}
