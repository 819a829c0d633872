package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/churn/internal/domain/prediction"
)

const defaultMaxSize = 10_000

// node is one entry of the insertion-ordered list.
type node struct {
	key    string
	result prediction.Result
	next   *node
}

func (n *node) reset() {
	n.key = ""
	n.result = prediction.Result{}
	n.next = nil
}

// Memory is a bounded in-process cache with FIFO eviction. A non-positive
// max size makes it unbounded.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]*node
	head     *node // oldest
	tail     *node // newest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMaxSize sets the maximum number of cached results.
func WithMaxSize(size int) MemoryOption {
	return func(m *Memory) {
		m.maxSize = size
	}
}

// NewMemory creates an in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = make(map[string]*node)
	m.nodePool = sync.Pool{New: func() any { return &node{} }}
	return m
}

// Get returns the cached result for key.
func (m *Memory) Get(_ context.Context, key string) (prediction.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.entries[key]
	if !ok {
		return prediction.Result{}, false, nil
	}
	return n.result, true, nil
}

// Set stores r under key. Existing keys keep their position in the
// eviction order.
func (m *Memory) Set(_ context.Context, key string, r prediction.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.entries[key]; ok {
		n.result = r
		return
	}
	if m.maxSize > 0 && len(m.entries) >= m.maxSize {
		m.evictOldest()
	}

	n := m.nodePool.Get().(*node) //nolint:errcheck // pool only holds *node
	n.key = key
	n.result = r
	if m.tail == nil {
		m.head = n
	} else {
		m.tail.next = n
	}
	m.tail = n
	m.entries[key] = n
	m.size.Add(1)
}

// evictOldest drops the head of the list. Must be called with m.mu held.
func (m *Memory) evictOldest() {
	n := m.head
	if n == nil {
		return
	}
	m.head = n.next
	if m.head == nil {
		m.tail = nil
	}
	delete(m.entries, n.key)
	n.reset()
	m.nodePool.Put(n)
	m.size.Add(-1)
}

// Size returns the number of cached results.
func (m *Memory) Size() int64 {
	return m.size.Load()
}
