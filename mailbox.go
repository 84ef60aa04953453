// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"sync/atomic"

	"github.com/eapache/queue"
)

// OnceTag coalesces pending dispatch requests for the same logical operation.
// While a callback queued under a tag is pending, further requests using the
// same tag are dropped. The tag becomes available again just before the
// pending callback runs. The zero value is ready to use.
type OnceTag struct {
	active atomic.Bool
}

// Pending reports whether a callback queued under the tag has not yet run.
func (t *OnceTag) Pending() bool {
	return t.active.Load()
}

// Sync queues fn to be run by the given thread the next time that thread calls
// [Runtime.SyncPoint]. Callbacks for the same thread run in the order they
// were queued; there is no ordering between different threads.
//
// A panic escaping fn is passed to [Runtime.HandlePanic], whose default
// handler terminates the process. Use [SyncFuture] to receive panics and
// errors through a [Future] instead.
//
// Panics if thread is zero or fn is nil.
func (rt *Runtime) Sync(thread ThreadID, fn func()) {
	if thread == 0 {
		panic("thread must be non-zero")
	}
	if fn == nil {
		panic("callback function must be non-nil")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	mb := rt.mailboxes[thread]
	if mb == nil {
		mb = queue.New()
		rt.mailboxes[thread] = mb
	}
	mb.Add(fn)
}

// SyncMain queues fn for the main thread. Panics if no main thread has been
// set.
func (rt *Runtime) SyncMain(fn func()) {
	rt.Sync(rt.mustMainThread(), fn)
}

// Delay queues fn for the thread bound to ctx, deferring it to that thread's
// next [Runtime.SyncPoint]. Panics if ctx is not bound to a thread.
func (rt *Runtime) Delay(ctx context.Context, fn func()) {
	rt.Sync(mustThreadFromContext(ctx), fn)
}

// SyncOnce is like [Runtime.Sync] but drops the request if a callback queued
// under tag is still pending. Returns true if fn was queued.
func (rt *Runtime) SyncOnce(tag *OnceTag, thread ThreadID, fn func()) bool {
	if tag == nil {
		panic("tag must be non-nil")
	}
	if thread == 0 {
		panic("thread must be non-zero")
	}
	if fn == nil {
		panic("callback function must be non-nil")
	}
	if !tag.active.CompareAndSwap(false, true) {
		return false
	}
	rt.Sync(thread, func() {
		tag.active.Store(false)
		fn()
	})
	return true
}

// SyncMainOnce is [Runtime.SyncOnce] targeting the main thread.
func (rt *Runtime) SyncMainOnce(tag *OnceTag, fn func()) bool {
	return rt.SyncOnce(tag, rt.mustMainThread(), fn)
}

// DelayOnce is [Runtime.SyncOnce] targeting the thread bound to ctx.
func (rt *Runtime) DelayOnce(ctx context.Context, tag *OnceTag, fn func()) bool {
	return rt.SyncOnce(tag, mustThreadFromContext(ctx), fn)
}

// SyncFunc returns a function that, each time it is called, queues fn for the
// given thread.
func (rt *Runtime) SyncFunc(thread ThreadID, fn func()) func() {
	if fn == nil {
		panic("callback function must be non-nil")
	}
	return func() {
		rt.Sync(thread, fn)
	}
}

// SyncMainFunc returns a function that, each time it is called, queues fn for
// the main thread.
func (rt *Runtime) SyncMainFunc(fn func()) func() {
	if fn == nil {
		panic("callback function must be non-nil")
	}
	return func() {
		rt.SyncMain(fn)
	}
}

// SyncPoint runs every callback queued for the thread bound to ctx, in the
// order they were queued, on the calling goroutine. Callbacks queued while
// SyncPoint is running are left for the next call. Returns the number of
// callbacks run. Panics if ctx is not bound to a thread.
func (rt *Runtime) SyncPoint(ctx context.Context) int {
	mb := rt.takeMailbox(mustThreadFromContext(ctx))
	if mb == nil {
		return 0
	}
	n := 0
	for mb.Length() > 0 {
		fn := mb.Remove().(func())
		if pe := recoverInto(ErrCallbackPanic, fn); pe != nil {
			rt.HandlePanic(pe)
		}
		n++
	}
	return n
}

// Pending returns the number of callbacks queued for the given thread.
func (rt *Runtime) Pending(thread ThreadID) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if mb := rt.mailboxes[thread]; mb != nil {
		return mb.Length()
	}
	return 0
}

func (rt *Runtime) takeMailbox(thread ThreadID) *queue.Queue {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	mb := rt.mailboxes[thread]
	delete(rt.mailboxes, thread)
	return mb
}

func (rt *Runtime) mustMainThread() ThreadID {
	id := rt.MainThread()
	if id == 0 {
		panic("main thread not set")
	}
	return id
}

// Executor returns an [Executor] that queues tasks for the given thread.
func (rt *Runtime) Executor(thread ThreadID) Executor {
	if thread == 0 {
		panic("thread must be non-zero")
	}
	return ExecutorFunc(func(task func()) {
		rt.Sync(thread, task)
	})
}

// SyncFuture queues fn for the given thread and returns a future for its
// result. Errors returned by fn and panics escaping it resolve the future
// rather than reaching [Runtime.HandlePanic].
func SyncFuture[T any](rt *Runtime, thread ThreadID, fn func() (T, error)) *Future[T] {
	if fn == nil {
		panic("callback function must be non-nil")
	}
	f, resolve := NewPromise[T]()
	rt.Sync(thread, packaged(ErrCallbackPanic, fn, resolve))
	return f
}

// SyncMainFuture is [SyncFuture] targeting the main thread.
func SyncMainFuture[T any](rt *Runtime, fn func() (T, error)) *Future[T] {
	return SyncFuture(rt, rt.mustMainThread(), fn)
}

// DelayFuture is [SyncFuture] targeting the thread bound to ctx.
func DelayFuture[T any](rt *Runtime, ctx context.Context, fn func() (T, error)) *Future[T] {
	return SyncFuture(rt, mustThreadFromContext(ctx), fn)
}
