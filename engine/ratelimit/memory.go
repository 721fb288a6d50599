package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	contactID string
	kind      WindowKind
	start     int64
}

// MemoryCounter is an in-process counter for tests and single-instance
// deployments.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[memoryKey]int64
	now    func() time.Time
}

// NewMemoryCounter creates an in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counts: make(map[memoryKey]int64),
		now:    time.Now,
	}
}

// WithClock overrides the time source, for window-boundary tests.
func (c *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	c.now = now
	return c
}

// Increment implements Counter.
func (c *MemoryCounter) Increment(_ context.Context, contactID string, kind WindowKind) (int64, error) {
	start := kind.BucketStart(c.now())

	c.mu.Lock()
	defer c.mu.Unlock()

	k := memoryKey{contactID: contactID, kind: kind, start: start.Unix()}
	c.counts[k]++
	return c.counts[k], nil
}

// Peek implements Counter.
func (c *MemoryCounter) Peek(_ context.Context, contactID string, kind WindowKind) (int64, time.Time, error) {
	start := kind.BucketStart(c.now())

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[memoryKey{contactID: contactID, kind: kind, start: start.Unix()}], start, nil
}
