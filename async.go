// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"errors"
	"sync"
)

// Async runs task on the pool's async stream and then calls callback with its
// result on the sync stream. A panic escaping task is delivered to callback
// as a [*PanicError]; a panic escaping callback is passed to the runtime's
// unhandled-panic handler. Panics if task or callback is nil.
func Async[T any](p *TaskPool, task func() (T, error), callback func(T, error)) {
	if task == nil {
		panic("task must be non-nil")
	}
	if callback == nil {
		panic("callback function must be non-nil")
	}
	p.Async(func() {
		var value T
		var err error
		if pe := recoverInto(ErrTaskPanic, func() {
			value, err = task()
		}); pe != nil {
			err = pe
		}
		p.Sync(func() {
			callback(value, err)
		})
	})
}

// AsyncFuture runs task on the pool's async stream and returns a future for
// its result. If the pool drops the task after being joined, the future
// resolves with [ErrPromiseBroken].
func AsyncFuture[T any](p *TaskPool, task func() (T, error)) *Future[T] {
	if task == nil {
		panic("task must be non-nil")
	}
	f, resolve := NewPromise[T]()
	p.asyncOr(packaged(ErrTaskPanic, task, resolve), func() {
		var zero T
		resolve(zero, ErrPromiseBroken)
	})
	return f
}

// Parallel runs every task concurrently on the pool's async stream. Once all
// have finished, callback is called on the sync stream with the error of the
// first task to fail, or nil. Every task runs regardless of failures. Panics
// escaping tasks are reported as [*PanicError].
func Parallel(p *TaskPool, tasks []func() error, callback func(error)) {
	if callback == nil {
		panic("callback function must be non-nil")
	}
	if len(tasks) == 0 {
		p.Sync(func() {
			callback(nil)
		})
		return
	}
	var mu sync.Mutex
	var first error
	pending := len(tasks)
	for _, task := range tasks {
		if task == nil {
			panic("task must be non-nil")
		}
	}
	for _, task := range tasks {
		p.Async(func() {
			err := runErrTask(task)
			mu.Lock()
			if err != nil && first == nil {
				first = err
			}
			pending--
			last := pending == 0
			mu.Unlock()
			if last {
				p.Sync(func() {
					callback(first)
				})
			}
		})
	}
}

// Sequence runs tasks one after another on the pool's async stream, stopping
// at the first failure. callback is then called on the sync stream with that
// failure, or nil if every task succeeded.
func Sequence(p *TaskPool, tasks []func() error, callback func(error)) {
	if callback == nil {
		panic("callback function must be non-nil")
	}
	for _, task := range tasks {
		if task == nil {
			panic("task must be non-nil")
		}
	}
	var step func(i int)
	step = func(i int) {
		if i == len(tasks) {
			p.Sync(func() {
				callback(nil)
			})
			return
		}
		p.Async(func() {
			if err := runErrTask(tasks[i]); err != nil {
				p.Sync(func() {
					callback(err)
				})
				return
			}
			step(i + 1)
		})
	}
	step(0)
}

// ParallelWait runs every task concurrently on the pool's async stream and
// blocks until all have finished, returning the joined errors of those that
// failed. Tasks dropped by a joined pool fail with [ErrPromiseBroken]. Like
// [TaskPool.Start], it must only be called by the pool's owner.
func ParallelWait(p *TaskPool, tasks ...func() error) error {
	for _, task := range tasks {
		if task == nil {
			panic("task must be non-nil")
		}
	}
	if !p.draining() {
		p.Start()
	}
	errs := make([]error, len(tasks))
	done := NewLatch(int64(len(tasks)))
	for i, task := range tasks {
		p.asyncOr(func() {
			defer done.CountDown()
			errs[i] = runErrTask(task)
		}, func() {
			errs[i] = ErrPromiseBroken
			done.CountDown()
		})
	}
	done.Wait()
	return errors.Join(errs...)
}

func runErrTask(task func() error) error {
	var err error
	if pe := recoverInto(ErrTaskPanic, func() {
		err = task()
	}); pe != nil {
		return pe
	}
	return err
}
