// Package idgen provides primary key generation: UUIDs for uuid/string keys
// and per-collection counters for autoIncrement keys.
package idgen

import (
	"sync"
	"sync/atomic"

	"github.com/artpar/modelwire/ports"
	"github.com/google/uuid"
)

// UUID generates UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates sequential string IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + uitoa(n)
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)

// Counter hands out autoIncrement values per collection.
type Counter struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewCounter creates an empty counter set.
func NewCounter() *Counter {
	return &Counter{last: make(map[string]int64)}
}

// Next returns the next value for collection, starting at 1.
func (c *Counter) Next(collection string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[collection]++
	return c.last[collection]
}

// Observe records an explicitly supplied value so later Next calls never
// return it again.
func (c *Counter) Observe(collection string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.last[collection] {
		c.last[collection] = n
	}
}

// Reset forgets the sequence of collection.
func (c *Counter) Reset(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, collection)
}
