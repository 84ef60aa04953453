// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/petenewcomb/c9y-go/internal/timerp"
	"github.com/petenewcomb/c9y-go/internal/waitq"
)

// Queue is a thread-safe FIFO queue whose consumers may block until an item
// is available. The zero value is an empty, running queue ready to use.
//
// Once [Queue.Stop] has been called the queue never blocks again, but items
// already queued (and items pushed later) may still be popped, so consumers
// can drain it until it is empty.
//
// A Queue must not be copied after first use.
type Queue[T any] struct {
	mu      sync.Mutex
	items   deque.Deque[T]
	waiters waitq.Queue
	stopped bool
}

// Push appends v to the back of the queue and wakes one blocked consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushBack(v)
	q.waiters.Notify()
}

// Pop removes and returns the item at the front of the queue without
// blocking. The boolean is false if the queue was empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// PopWait removes and returns the item at the front of the queue, blocking
// until one is available. The boolean is false only if the queue has been
// stopped and is empty.
func (q *Queue[T]) PopWait() (T, bool) {
	v, ok, _ := q.popWait(context.Background(), nil)
	return v, ok
}

// PopWaitFor is like [Queue.PopWait] but gives up after d. The boolean is false
// if the wait timed out or the queue has been stopped and is empty.
func (q *Queue[T]) PopWaitFor(d time.Duration) (T, bool) {
	if d <= 0 {
		return q.Pop()
	}
	t := timerp.Get(d)
	defer timerp.Put(t)
	v, ok, _ := q.popWait(context.Background(), t.C)
	return v, ok
}

// PopWaitContext is like [Queue.PopWait] but gives up when ctx is done, in
// which case it returns the context's error.
func (q *Queue[T]) PopWaitContext(ctx context.Context) (T, bool, error) {
	return q.popWait(ctx, nil)
}

// popWait blocks until an item is available, the queue is stopped, ctx is
// done, or timeout fires. A nil timeout never fires.
func (q *Queue[T]) popWait(ctx context.Context, timeout <-chan time.Time) (T, bool, error) {
	for {
		q.mu.Lock()
		if v, ok := q.popLocked(); ok || q.stopped {
			q.mu.Unlock()
			return v, ok, nil
		}
		// Registering while still holding q.mu ensures that a Push or Stop
		// following the emptiness check above will find this waiter.
		w := q.waiters.Add()
		q.mu.Unlock()

		select {
		case <-w.Done():
			// Loop to re-check: another consumer may have taken the item.
		case <-ctx.Done():
			w.Close()
			return q.popAfterGivingUp(ctx.Err())
		case <-timeout:
			w.Close()
			return q.popAfterGivingUp(nil)
		}
	}
}

// popAfterGivingUp makes one last non-blocking attempt so that an item pushed
// concurrently with the wait expiring is not left behind.
func (q *Queue[T]) popAfterGivingUp(err error) (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.popLocked()
	if ok {
		return v, true, nil
	}
	return v, false, err
}

func (q *Queue[T]) popLocked() (T, bool) {
	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items.PopFront(), true
}

// Stop marks the queue as stopped and wakes every blocked consumer. Stopping
// is permanent. Calling Stop more than once has no additional effect.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.waiters.NotifyAll()
}

// Stopped reports whether [Queue.Stop] has been called.
func (q *Queue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
