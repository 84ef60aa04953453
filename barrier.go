// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"sync"
)

// ArrivalToken identifies the barrier generation in which a participant
// arrived.
type ArrivalToken struct {
	generation int64
}

// Generation returns the generation the token was issued in.
func (t ArrivalToken) Generation() int64 {
	return t.generation
}

// Barrier is a reusable rendezvous for a group of participants. When the
// expected number of arrivals for a generation has been counted, the
// completion function runs exactly once, the count is reloaded, and every
// participant waiting on that generation is released.
//
// A Barrier must be created with [NewBarrier].
type Barrier struct {
	mu           sync.Mutex
	expected     int64
	count        int64
	generation   int64
	genDone      chan struct{}
	onCompletion func()
}

// NewBarrier creates a barrier for expected participants. onCompletion may be
// nil. It runs on the goroutine whose arrival completes a generation, before
// any waiter is released, and must not call back into the barrier. A panic
// escaping onCompletion propagates out of the arrival that triggered it, after
// the generation has completed. Panics if expected is less than one.
func NewBarrier(expected int64, onCompletion func()) *Barrier {
	if expected < 1 {
		panic("expected count must be positive")
	}
	return &Barrier{
		expected:     expected,
		count:        expected,
		genDone:      make(chan struct{}),
		onCompletion: onCompletion,
	}
}

// Arrive counts n arrivals in the current generation and returns a token for
// use with [Barrier.Wait].
func (b *Barrier) Arrive(n int64) ArrivalToken {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arriveLocked(n, 0)
}

// ArriveAndDrop counts one arrival in the current generation and permanently
// reduces the number of participants expected in later generations by one.
func (b *Barrier) ArriveAndDrop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arriveLocked(1, 1)
}

func (b *Barrier) arriveLocked(n, drop int64) ArrivalToken {
	at := ArrivalToken{generation: b.generation}
	b.count -= n
	b.expected -= drop
	if b.count > 0 {
		return at
	}
	// The generation completes even if onCompletion panics.
	defer b.nextGenerationLocked()
	if b.onCompletion != nil {
		b.onCompletion()
	}
	return at
}

func (b *Barrier) nextGenerationLocked() {
	b.count = b.expected
	b.generation++
	close(b.genDone)
	b.genDone = make(chan struct{})
}

// Wait blocks until the generation identified by token has completed. It
// returns immediately if that generation is already over.
func (b *Barrier) Wait(token ArrivalToken) {
	b.mu.Lock()
	if token.generation != b.generation {
		b.mu.Unlock()
		return
	}
	ch := b.genDone
	b.mu.Unlock()
	<-ch
}

// ArriveAndWait arrives once and waits for the generation to complete.
func (b *Barrier) ArriveAndWait() {
	b.Wait(b.Arrive(1))
}

// Generation returns the number of generations completed so far.
func (b *Barrier) Generation() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
