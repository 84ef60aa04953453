// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package counter provides the outstanding-work counter shared by the
// execution streams of a task pool.
package counter

import (
	"sync/atomic"
)

// Outstanding counts units of work that have been registered but not yet
// completed. The zero value is ready to use and safe for concurrent use.
type Outstanding struct {
	v atomic.Int64
}

// Increment registers one unit of work.
func (c *Outstanding) Increment() {
	c.v.Add(1)
}

// TryDecrement completes one unit of work. It has no effect when the counter
// is already zero, which happens once outstanding work has been forfeited by
// Reset. The first result reports whether a unit was completed and the second
// whether the counter has reached zero.
func (c *Outstanding) TryDecrement() (decremented, reachedZero bool) {
	for {
		v := c.v.Load()
		if v <= 0 {
			return false, false
		}
		if c.v.CompareAndSwap(v, v-1) {
			return true, v == 1
		}
	}
}

// GreaterThanZero returns true if any work is outstanding.
func (c *Outstanding) GreaterThanZero() bool {
	return c.v.Load() > 0
}

// Load returns the current count.
func (c *Outstanding) Load() int64 {
	return c.v.Load()
}

// Reset forces the counter to zero, forfeiting any outstanding work.
func (c *Outstanding) Reset() {
	c.v.Store(0)
}
