// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"runtime"
	"sync"
)

// ThreadPool owns a fixed set of [Thread] instances that all run the same
// function, each with its own stop token.
//
// A ThreadPool must be created with [NewThreadPool].
type ThreadPool struct {
	threads  []*Thread
	joinOnce sync.Once
}

// DefaultConcurrency is the number of threads used when a non-positive
// concurrency is requested: the current GOMAXPROCS setting.
func DefaultConcurrency() int {
	return runtime.GOMAXPROCS(0)
}

// NewThreadPool starts concurrency goroutines, each running fn. A
// non-positive concurrency means [DefaultConcurrency]. Panics if fn is nil.
func NewThreadPool(concurrency int, fn func(StopToken)) *ThreadPool {
	if fn == nil {
		panic("thread function must be non-nil")
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	p := &ThreadPool{
		threads: make([]*Thread, concurrency),
	}
	for i := range p.threads {
		p.threads[i] = Go(fn)
	}
	return p
}

// Concurrency returns the number of threads in the pool.
func (p *ThreadPool) Concurrency() int {
	return len(p.threads)
}

// Join blocks until every thread in the pool has returned. Calling Join more
// than once, including concurrently, is safe.
func (p *ThreadPool) Join() {
	p.joinOnce.Do(func() {
		for _, t := range p.threads {
			t.Join()
		}
	})
}

// RequestStop requests a stop on every thread. Returns true only if every
// request performed a fresh transition.
func (p *ThreadPool) RequestStop() bool {
	all := true
	for _, t := range p.threads {
		if !t.RequestStop() {
			all = false
		}
	}
	return all
}

// Close requests a stop on every thread and then joins the pool.
func (p *ThreadPool) Close() {
	p.RequestStop()
	p.Join()
}
