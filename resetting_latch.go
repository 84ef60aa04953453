// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"sync"
	"time"

	"github.com/petenewcomb/c9y-go/internal/timerp"
)

// ResettingLatch is a reusable latch. Each time the count reaches zero it is
// reloaded with the expected value, the generation is incremented, and every
// goroutine waiting on the finished generation is released.
//
// [ResettingLatch.Wait] waits for the generation that is current when it is
// called. A Wait that races with the final CountDown of a generation and
// loses will therefore block until the end of the following generation.
// Callers that need a one-shot rendezvous should use [ResettingLatch.ArriveAndWait]
// or test their own condition before waiting.
//
// A ResettingLatch must be created with [NewResettingLatch].
type ResettingLatch struct {
	mu         sync.Mutex
	expected   int64
	count      int64
	generation int64
	genDone    chan struct{} // closed when the current generation completes
}

// NewResettingLatch creates a resetting latch. Panics if expected is less
// than one.
func NewResettingLatch(expected int64) *ResettingLatch {
	if expected < 1 {
		panic("expected count must be positive")
	}
	return &ResettingLatch{
		expected: expected,
		count:    expected,
		genDone:  make(chan struct{}),
	}
}

// CountDown decrements the count by one.
func (l *ResettingLatch) CountDown() {
	l.CountDownBy(1)
}

// CountDownBy decrements the count by n, completing the current generation if
// it reaches zero.
func (l *ResettingLatch) CountDownBy(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.countDownLocked(n)
}

// countDownLocked returns the channel of the generation the caller arrived
// in, and whether that generation is still in progress.
func (l *ResettingLatch) countDownLocked(n int64) (<-chan struct{}, bool) {
	ch := l.genDone
	l.count -= n
	if l.count > 0 {
		return ch, true
	}
	l.count = l.expected
	l.generation++
	l.genDone = make(chan struct{})
	close(ch)
	return ch, false
}

// Wait blocks until the current generation completes.
func (l *ResettingLatch) Wait() {
	<-l.current()
}

// WaitFor is like [ResettingLatch.Wait] but gives up after d. Returns true if
// the generation completed.
func (l *ResettingLatch) WaitFor(d time.Duration) bool {
	ch := l.current()
	t := timerp.Get(d)
	defer timerp.Put(t)
	select {
	case <-ch:
		return true
	case <-t.C:
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
}

// ArriveAndWait counts down by n and, unless this call completed the
// generation, waits for the generation it arrived in to complete.
func (l *ResettingLatch) ArriveAndWait(n int64) {
	l.mu.Lock()
	ch, pending := l.countDownLocked(n)
	l.mu.Unlock()
	if pending {
		<-ch
	}
}

// Generation returns the number of generations completed so far.
func (l *ResettingLatch) Generation() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Count returns the remaining count of the current generation.
func (l *ResettingLatch) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *ResettingLatch) current() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.genDone
}
