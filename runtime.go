// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// ThreadID identifies a goroutine that participates in sync dispatch. The zero
// value means "no thread".
type ThreadID uint64

// PanicHandler receives panics that have no typed result channel to carry them
// back to a caller. See [Runtime.SetUnhandledPanic].
type PanicHandler func(err *PanicError)

// Runtime is the context shared by the components of this package: the
// per-thread mailboxes used by [Runtime.Sync] and [Runtime.SyncPoint], the
// main thread register, and the unhandled-panic hook. Independent runtimes do
// not share any state.
//
// A Runtime must be created with [NewRuntime].
type Runtime struct {
	logger *zap.Logger

	nextThread atomic.Uint64
	mainThread atomic.Uint64
	unhandled  atomic.Pointer[PanicHandler]

	mu        sync.Mutex
	mailboxes map[ThreadID]*queue.Queue
}

// RuntimeOption configures a [Runtime].
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	logger *zap.Logger
}

// WithRuntimeLogger sets the logger used to report unhandled panics. Defaults
// to a no-op logger.
func WithRuntimeLogger(logger *zap.Logger) RuntimeOption {
	return func(c *runtimeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRuntime creates a runtime with empty mailboxes, no main thread, and the
// default unhandled-panic handler, which re-panics and therefore terminates
// the process.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := runtimeConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	rt := &Runtime{
		logger:    cfg.logger,
		mailboxes: make(map[ThreadID]*queue.Queue),
	}
	h := PanicHandler(defaultPanicHandler)
	rt.unhandled.Store(&h)
	return rt
}

func defaultPanicHandler(err *PanicError) {
	panic(err)
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

// SetUnhandledPanic installs h as the handler for panics recovered where no
// typed result channel exists, and returns the previously installed handler.
// Panics if h is nil.
func (rt *Runtime) SetUnhandledPanic(h PanicHandler) PanicHandler {
	if h == nil {
		panic("panic handler must be non-nil")
	}
	return *rt.unhandled.Swap(&h)
}

// HandlePanic logs err and passes it to the installed unhandled-panic handler.
func (rt *Runtime) HandlePanic(err *PanicError) {
	rt.logger.Error("unhandled panic",
		zap.Error(err.Kind),
		zap.Any("value", err.Value),
		zap.ByteString("stack", err.Stack))
	(*rt.unhandled.Load())(err)
}

// Attach allocates a new thread identity and returns a copy of ctx bound to
// it. The goroutine that uses the returned context becomes the target of
// [Runtime.Delay] and the drainer in [Runtime.SyncPoint].
func (rt *Runtime) Attach(ctx context.Context) context.Context {
	return WithThread(ctx, rt.NewThreadID())
}

// NewThreadID allocates a thread identity that is unique within rt.
func (rt *Runtime) NewThreadID() ThreadID {
	return ThreadID(rt.nextThread.Add(1))
}

// SetMainThread sets the thread targeted by [Runtime.SyncMain]. The caller is
// responsible for ordering this before any such call.
func (rt *Runtime) SetMainThread(id ThreadID) {
	rt.mainThread.Store(uint64(id))
}

// MainThread returns the thread set by [Runtime.SetMainThread], or zero.
func (rt *Runtime) MainThread() ThreadID {
	return ThreadID(rt.mainThread.Load())
}

type threadKeyType struct{}

var threadKey any = threadKeyType{}

// WithThread returns a copy of ctx bound to the given thread.
func WithThread(ctx context.Context, id ThreadID) context.Context {
	return context.WithValue(ctx, threadKey, id)
}

// ThreadFromContext returns the thread bound to ctx, if any.
func ThreadFromContext(ctx context.Context) (ThreadID, bool) {
	id, ok := ctx.Value(threadKey).(ThreadID)
	return id, ok && id != 0
}

func mustThreadFromContext(ctx context.Context) ThreadID {
	id, ok := ThreadFromContext(ctx)
	if !ok {
		panic("context is not bound to a thread")
	}
	return id
}
