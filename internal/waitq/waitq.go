// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package waitq provides a FIFO queue of blocked goroutines that can be woken
// one at a time or all at once.
package waitq

import (
	"sync"

	"github.com/gammazero/deque"
)

// Queue is an unbounded FIFO of waiters. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	waiters deque.Deque[*Waiter]
}

// Add registers a new waiter at the back of the queue. Never blocks.
func (q *Queue) Add() *Waiter {
	w := &Waiter{
		q:  q,
		ch: make(chan struct{}),
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiters.PushBack(w)
	return w
}

// Notify wakes the waiter at the front of the queue, skipping any that have
// been closed. Returns true if a waiter was woken.
func (q *Queue) Notify() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notifyLocked()
}

// NotifyAll wakes every waiter currently in the queue and returns how many
// were woken.
func (q *Queue) NotifyAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for q.notifyLocked() {
		n++
	}
	return n
}

func (q *Queue) notifyLocked() bool {
	for q.waiters.Len() > 0 {
		w := q.waiters.PopFront()
		if w.closed {
			continue
		}
		w.notified = true
		close(w.ch)
		return true
	}
	return false
}

// A Waiter has the following lifecycle:
//
// 1. [Queue.Add] returns a waiter whose [Waiter.Done] channel is open and that
// sits in the queue.
//
// 2a. [Queue.Notify] or [Queue.NotifyAll] removes the waiter from the queue
// and closes its channel. The goroutine that selected on Done owns the
// notification from here on.
//
// 2b. [Waiter.Close] marks the waiter closed before it was notified. Notify
// will skip it when it reaches the front.
//
// 3. If Close is called after 2a, the waiter has given up on a notification
// it was handed, so Close passes the notification on to the next live waiter.
type Waiter struct {
	q        *Queue
	ch       chan struct{}
	notified bool // guarded by q.mu
	closed   bool // guarded by q.mu
}

// Done returns a channel that is closed when the waiter is notified.
func (w *Waiter) Done() <-chan struct{} {
	return w.ch
}

// Close abandons the wait. Calling Close more than once has no additional
// effect.
func (w *Waiter) Close() {
	q := w.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.notified {
		q.notifyLocked()
	}
}
