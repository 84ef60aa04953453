// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"sync"
)

// Executor runs tasks on some execution stream. [TaskPool.AsyncStream],
// [TaskPool.SyncStream], and [Runtime.Executor] provide executors that resume
// work on a worker goroutine, on a task pool's owner goroutine, or on a
// mailbox thread respectively.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts an ordinary function to the [Executor] interface.
type ExecutorFunc func(task func())

func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

// Resolve completes a [Future] with a value or an error.
type Resolve[T any] func(value T, err error)

// Future is the eventual result of a computation: either a value or an error.
// Futures are created by [NewPromise] and by the functions of this package
// that run work on another goroutine.
type Future[T any] struct {
	done chan struct{}

	mu    sync.Mutex
	value T
	err   error
	conts []func()
}

// NewPromise creates an unresolved future and the function that resolves it.
// The resolver panics if called more than once.
func NewPromise[T any]() (*Future[T], Resolve[T]) {
	f := &Future[T]{
		done: make(chan struct{}),
	}
	return f, f.resolve
}

func (f *Future[T]) resolve(value T, err error) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		panic("future already resolved")
	default:
	}
	f.value = value
	f.err = err
	conts := f.conts
	f.conts = nil
	close(f.done)
	f.mu.Unlock()

	for _, cont := range conts {
		cont()
	}
}

// Done returns a channel that is closed when the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future is resolved and returns its result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait is like [Future.Get] but gives up when ctx is done, returning the
// context's error.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the result without blocking. The boolean is false if the
// future is not yet resolved.
func (f *Future[T]) TryGet() (T, bool, error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// onResolved arranges for cont to run once the future is resolved: on the
// resolving goroutine if registered first, else immediately.
func (f *Future[T]) onResolved(cont func()) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		cont()
		return
	default:
	}
	f.conts = append(f.conts, cont)
	f.mu.Unlock()
}

// Then returns a future for the result of applying fn to the result of f.
// Once f is resolved, fn is handed to ex, so the choice of executor decides
// where the continuation resumes. A panic escaping fn resolves the returned
// future with a [*PanicError]. If ex is a stream of a [TaskPool] that drops
// the continuation after being joined, the returned future resolves with
// [ErrPromiseBroken].
func Then[T, U any](f *Future[T], ex Executor, fn func(T, error) (U, error)) *Future[U] {
	if ex == nil {
		panic("executor must be non-nil")
	}
	if fn == nil {
		panic("continuation function must be non-nil")
	}
	next, resolve := NewPromise[U]()
	f.onResolved(func() {
		value, err := f.value, f.err
		run := packaged(ErrCallbackPanic, func() (U, error) {
			return fn(value, err)
		}, resolve)
		if ae, ok := ex.(abandoningExecutor); ok {
			ae.executeOr(run, func() {
				var zero U
				resolve(zero, ErrPromiseBroken)
			})
			return
		}
		ex.Execute(run)
	})
	return next
}

// packaged wraps fn so that its result, or the panic escaping it, resolves a
// future.
func packaged[T any](kind error, fn func() (T, error), resolve Resolve[T]) func() {
	return func() {
		var value T
		var err error
		if pe := recoverInto(kind, func() {
			value, err = fn()
		}); pe != nil {
			var zero T
			resolve(zero, pe)
			return
		}
		resolve(value, err)
	}
}
