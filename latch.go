// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"sync"
	"time"

	"github.com/petenewcomb/c9y-go/internal/timerp"
)

// Latch is a single-use downward counter. Goroutines block in [Latch.Wait]
// until the count reaches zero, after which every wait returns immediately.
//
// A Latch must be created with [NewLatch].
type Latch struct {
	mu    sync.Mutex
	count int64
	done  chan struct{}
}

// NewLatch creates a latch with the given count. Panics if n is negative.
func NewLatch(n int64) *Latch {
	if n < 0 {
		panic("latch count must not be negative")
	}
	l := &Latch{
		count: n,
		done:  make(chan struct{}),
	}
	if n == 0 {
		close(l.done)
	}
	return l
}

// CountDown decrements the count by one.
func (l *Latch) CountDown() {
	l.CountDownBy(1)
}

// CountDownBy decrements the count by n and releases all waiters once it
// reaches zero. Counting down past zero is a caller error; it does not
// re-arm the latch.
func (l *Latch) CountDownBy(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasOpen := l.count > 0
	l.count -= n
	if wasOpen && l.count <= 0 {
		close(l.done)
	}
}

// TryWait reports whether the count has reached zero, without blocking.
func (l *Latch) TryWait() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the count reaches zero.
func (l *Latch) Wait() {
	<-l.done
}

// WaitFor is like [Latch.Wait] but gives up after d. Returns true if the
// count reached zero.
func (l *Latch) WaitFor(d time.Duration) bool {
	if l.TryWait() {
		return true
	}
	t := timerp.Get(d)
	defer timerp.Put(t)
	select {
	case <-l.done:
		return true
	case <-t.C:
		return l.TryWait()
	}
}

// WaitContext is like [Latch.Wait] but gives up when ctx is done, returning
// the context's error.
func (l *Latch) WaitContext(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		if l.TryWait() {
			return nil
		}
		return ctx.Err()
	}
}

// ArriveAndWait counts down by n and then waits.
func (l *Latch) ArriveAndWait(n int64) {
	l.CountDownBy(n)
	l.Wait()
}

// Done returns a channel that is closed when the count reaches zero.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}
