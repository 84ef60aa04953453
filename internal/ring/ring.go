// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package ring provides a single-goroutine FIFO queue.
package ring

// Queue is a FIFO queue implemented as a ring buffer that grows as needed. It
// is not safe for concurrent use. The zero value is ready to use.
type Queue[T any] struct {
	items []T
	front int // index of the first element
	size  int
}

// PushBack adds an item to the back of the queue.
func (q *Queue[T]) PushBack(item T) {
	if q.size == len(q.items) {
		q.grow()
	}
	q.items[(q.front+q.size)%len(q.items)] = item
	q.size++
}

// PopFront removes and returns the item at the front of the queue. Returns
// the zero value and false if the queue is empty.
func (q *Queue[T]) PopFront() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.items[q.front]
	q.items[q.front] = zero // release the reference for the GC
	q.front = (q.front + 1) % len(q.items)
	q.size--
	if q.size == 0 {
		q.front = 0
	}
	return item, true
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	return q.size
}

// grow doubles the capacity, unwrapping the contents to start at index zero.
func (q *Queue[T]) grow() {
	newCap := 2 * len(q.items)
	if newCap == 0 {
		newCap = 4
	}
	items := make([]T, newCap)
	for i := range q.size {
		items[i] = q.items[(q.front+i)%len(q.items)]
	}
	q.items = items
	q.front = 0
}
