// Package cache provides the bounded response cache keyed by normalized
// question text.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

const (
	DefaultCapacity   = 100
	DefaultEvictCount = 15
	// MinAnswerLength guards the cache against empty or error answers.
	MinAnswerLength = 30
)

// Entry is one memoized answer with its retrieval metrics.
type Entry struct {
	Answer  string
	Metrics domain.AskMetrics
}

// Cache memoizes full answers by question hash. Eviction is by insertion
// order: when the cache is at capacity, the oldest entries are dropped in
// one batch before the new insert. Reads never promote entries.
//
// The evict count is fixed regardless of how far over capacity the cache
// is; concurrent bursts between the capacity check and the insert can leave
// it transiently above capacity. The mutex keeps individual operations
// consistent under the HTTP server's concurrency.
type Cache struct {
	mu       sync.Mutex
	capacity int
	evict    int
	entries  map[string]Entry
	order    []string
}

// New creates a cache with the given capacity and batch evict count.
// Non-positive values fall back to the defaults.
func New(capacity, evictCount int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if evictCount <= 0 {
		evictCount = DefaultEvictCount
	}
	if evictCount > capacity {
		evictCount = capacity
	}
	return &Cache{
		capacity: capacity,
		evict:    evictCount,
		entries:  make(map[string]Entry, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Key hashes the lower-cased, trimmed question to an 8-hex-character key.
func Key(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:8]
}

// Get returns the stored entry for key, if any.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Put stores an answer unless it is too short to be worth caching.
func (c *Cache) Put(key, answer string, metrics domain.AskMetrics) {
	if len(strings.TrimSpace(answer)) <= MinAnswerLength {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		evicted := c.order[:c.evict]
		for _, old := range evicted {
			delete(c.entries, old)
		}
		c.order = append(c.order[:0], c.order[c.evict:]...)
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = Entry{Answer: answer, Metrics: metrics}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, c.capacity)
	c.order = c.order[:0]
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RecentKeys returns up to n most recently inserted keys, newest last.
func (c *Cache) RecentKeys(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.order) {
		n = len(c.order)
	}
	out := make([]string, n)
	copy(out, c.order[len(c.order)-n:])
	return out
}
