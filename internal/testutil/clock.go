package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a DeterministicClock.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a fake wall clock for tests: every call to Now
// returns the previous instant plus a fixed step, so timestamps and
// durations in rendered reports are identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at Epoch that advances
// 10ms per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, 10*time.Millisecond)
}

// NewDeterministicClockAt creates a clock starting at start, advancing by step.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{next: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}
