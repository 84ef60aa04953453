// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"github.com/petenewcomb/c9y-go/internal/ring"
)

// DeferQueue holds functions postponed by the goroutine that owns it until
// that goroutine calls [DeferQueue.CatchUp]. It is not safe for concurrent
// use. The zero value is ready to use.
type DeferQueue struct {
	q ring.Queue[func()]
}

// Defer appends fn to the queue. Panics if fn is nil.
func (d *DeferQueue) Defer(fn func()) {
	if fn == nil {
		panic("deferred function must be non-nil")
	}
	d.q.PushBack(fn)
}

// CatchUp runs deferred functions in order until the queue is empty,
// including any deferred while catching up. Returns true if at least one
// function ran.
func (d *DeferQueue) CatchUp() bool {
	ran := false
	for {
		fn, ok := d.q.PopFront()
		if !ok {
			return ran
		}
		fn()
		ran = true
	}
}

// Len returns the number of deferred functions.
func (d *DeferQueue) Len() int {
	return d.q.Len()
}
