// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package c9y provides building blocks for structuring concurrent programs
// around an owner goroutine that drives work to completion while a pool of
// workers runs tasks in parallel.
//
// A [TaskPool] has two execution streams. Tasks submitted with
// [TaskPool.Async] run on worker goroutines; tasks submitted with
// [TaskPool.Sync] run one at a time on the owner, inside [TaskPool.Run]. A
// task on either stream may submit more tasks to either stream, so work can
// bounce between parallel computation and sequential bookkeeping without the
// bookkeeping needing locks. Run returns once every submitted task has run.
//
// Outside of a task pool, any goroutine can receive callbacks directly. A
// [Runtime] keeps one mailbox per [ThreadID]; [Runtime.Sync] queues a callback
// for a thread and [Runtime.SyncPoint], called by that thread, runs
// everything queued for it. Goroutines identify themselves by carrying a
// context bound with [Runtime.Attach].
//
// The package also provides the synchronization primitives these are built
// from or used with: a blocking [Queue], a one-shot [Latch], a self-resetting
// [ResettingLatch] and [Barrier], [Thread] and [ThreadPool] goroutine handles
// with cooperative cancellation through [StopSource] and [StopToken], and a
// [Future] type for chaining results across streams with [Then].
//
// Panics are never silently lost. A panic escaping a task or callback that has
// a typed result, such as a [Future], is delivered through that result as a
// [*PanicError]. Anything else is passed to [Runtime.HandlePanic], whose
// default handler re-panics.
package c9y
