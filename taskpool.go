// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/addrummond/heap"
	"github.com/petenewcomb/c9y-go/internal/counter"
	"go.uber.org/zap"
)

// A TaskPool runs tasks on two execution streams. Tasks submitted with
// [TaskPool.Async] run concurrently on a pool of worker goroutines. Tasks
// submitted with [TaskPool.Sync] run one at a time on the pool's owner: the
// goroutine calling [TaskPool.Run] or [TaskPool.RunOnce]. The pool counts
// tasks that have been submitted but not yet run, across both streams, so
// that Run can return once all work has drained.
//
// Async and Sync may be called from any goroutine, including from within a
// task. Start, Run, and RunOnce must only be called by the owner.
//
// A TaskPool must be created with [NewTaskPool].
type TaskPool struct {
	rt           *Runtime
	logger       *zap.Logger
	concurrency  int
	pollInterval time.Duration

	outstanding counter.Outstanding
	async       Queue[poolTask]
	sync        Queue[poolTask]

	// admit is held shared from a submission's draining check through its
	// enqueue, and exclusively by Join while it enters the draining state, so
	// every task is either dropped or queued before Join abandons the queues.
	admit sync.RWMutex

	mu      sync.Mutex // guards state transitions and workers
	state   atomic.Int32
	workers *ThreadPool
	joining atomic.Bool
	joined  chan struct{}

	// Owner only.
	timers   heap.Heap[timerEntry, heap.Min]
	timerSeq uint64
}

const (
	poolNew int32 = iota
	poolStarted
	poolDraining
	poolJoined
)

// poolTask is an entry on one of the pool's streams. A zero poolTask is the
// wake-up pushed onto the sync stream when the outstanding count reaches zero.
type poolTask struct {
	run func()
	// abandon, if non-nil, is called instead of run when the task is dropped
	// by a joined pool.
	abandon func()
}

// NewTaskPool creates a pool in the uninitialized state. No goroutines are
// started until the first call to [TaskPool.Start], [TaskPool.Run], or
// [TaskPool.RunOnce].
func NewTaskPool(opts ...TaskPoolOption) *TaskPool {
	cfg := taskPoolConfig{
		concurrency:  DefaultConcurrency(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runtime == nil {
		cfg.runtime = NewRuntime(WithRuntimeLogger(cfg.logger))
	}
	if cfg.logger == nil {
		cfg.logger = cfg.runtime.Logger()
	}
	return &TaskPool{
		rt:           cfg.runtime,
		logger:       cfg.logger,
		concurrency:  cfg.concurrency,
		pollInterval: cfg.pollInterval,
		joined:       make(chan struct{}),
	}
}

// Runtime returns the runtime that receives panics from the pool's tasks.
func (p *TaskPool) Runtime() *Runtime {
	return p.rt
}

// Concurrency returns the number of worker goroutines the pool runs.
func (p *TaskPool) Concurrency() int {
	return p.concurrency
}

// Outstanding returns the number of units of work that have been submitted
// but not completed, including one unit per active [Timer].
func (p *TaskPool) Outstanding() int64 {
	return p.outstanding.Load()
}

// Async submits task to run on a worker goroutine. After [TaskPool.Join] the
// task is dropped. Panics if task is nil.
func (p *TaskPool) Async(task func()) {
	if task == nil {
		panic("task must be non-nil")
	}
	p.submit(&p.async, poolTask{run: task}, "async")
}

// Sync submits task to run on the pool's owner goroutine. After
// [TaskPool.Join] the task is dropped. Panics if task is nil.
func (p *TaskPool) Sync(task func()) {
	if task == nil {
		panic("task must be non-nil")
	}
	p.submit(&p.sync, poolTask{run: task}, "sync")
}

func (p *TaskPool) submit(q *Queue[poolTask], t poolTask, stream string) {
	if !p.admitWork(func() { q.Push(t) }) {
		p.drop(t, stream)
	}
}

// admitWork registers one unit of outstanding work and runs enqueue, unless
// the pool is draining. Returns false if the work was refused, in which case
// the caller must drop it outside the lock.
func (p *TaskPool) admitWork(enqueue func()) bool {
	p.admit.RLock()
	defer p.admit.RUnlock()
	if p.draining() {
		return false
	}
	p.outstanding.Increment()
	enqueue()
	return true
}

// asyncOr submits run to the async stream, calling abandon instead if the
// pool drops it.
func (p *TaskPool) asyncOr(run, abandon func()) {
	p.submit(&p.async, poolTask{run: run, abandon: abandon}, "async")
}

func (p *TaskPool) drop(t poolTask, stream string) {
	p.logger.Warn("task dropped by joined pool", zap.String("stream", stream))
	if t.abandon != nil {
		t.abandon()
	}
}

func (p *TaskPool) draining() bool {
	return p.state.Load() >= poolDraining
}

// AsyncStream returns an [Executor] that submits tasks with [TaskPool.Async].
func (p *TaskPool) AsyncStream() Executor {
	return streamExecutor{p: p, q: &p.async, name: "async"}
}

// SyncStream returns an [Executor] that submits tasks with [TaskPool.Sync].
func (p *TaskPool) SyncStream() Executor {
	return streamExecutor{p: p, q: &p.sync, name: "sync"}
}

type streamExecutor struct {
	p    *TaskPool
	q    *Queue[poolTask]
	name string
}

func (e streamExecutor) Execute(task func()) {
	e.executeOr(task, nil)
}

func (e streamExecutor) executeOr(task, abandon func()) {
	if task == nil {
		panic("task must be non-nil")
	}
	e.p.submit(e.q, poolTask{run: task, abandon: abandon}, e.name)
}

// abandoningExecutor is implemented by executors that can report a dropped
// task, letting futures resolve with [ErrPromiseBroken] rather than hang.
type abandoningExecutor interface {
	executeOr(task, abandon func())
}

// Start launches the worker goroutines if they are not already running.
// Panics if the pool has been joined.
func (p *TaskPool) Start() {
	if p.state.Load() == poolStarted {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state.Load() {
	case poolNew:
		p.workers = NewThreadPool(p.concurrency, p.work)
		p.state.Store(poolStarted)
		p.logger.Debug("task pool started", zap.Int("concurrency", p.concurrency))
	case poolStarted:
	default:
		panic("task pool already joined")
	}
}

func (p *TaskPool) work(stop StopToken) {
	for !stop.StopRequested() {
		t, ok := p.async.PopWaitFor(p.pollInterval)
		if ok {
			p.runTask(t)
			continue
		}
		if p.async.Stopped() && p.async.Len() == 0 {
			return
		}
	}
}

// runTask runs t on the calling goroutine and completes its unit of work. A
// panic is passed to the runtime's unhandled-panic handler.
func (p *TaskPool) runTask(t poolTask) {
	defer p.release()
	if pe := recoverInto(ErrTaskPanic, t.run); pe != nil {
		p.rt.HandlePanic(pe)
	}
}

// release completes one unit of work and wakes the owner if none remain.
func (p *TaskPool) release() {
	if ok, zero := p.outstanding.TryDecrement(); ok && zero {
		p.sync.Push(poolTask{})
	}
}

// RunOnce starts the pool if needed, then runs at most one sync task along
// with any timers that are due. If no sync task is queued it waits, for at
// most the poll interval or until the next timer deadline, for one to
// arrive. Returns true if a sync task ran. Has no effect once the pool has
// been joined.
func (p *TaskPool) RunOnce() bool {
	if p.draining() {
		return false
	}
	p.Start()
	wait := p.fireTimers()
	t, ok := p.sync.PopWaitFor(wait)
	if !ok || t.run == nil {
		p.fireTimers()
		return false
	}
	p.runTask(t)
	return true
}

// Run repeatedly calls [TaskPool.RunOnce] until no work is outstanding, then
// joins the pool.
func (p *TaskPool) Run() {
	p.Start()
	for p.outstanding.GreaterThanZero() && !p.draining() {
		p.RunOnce()
	}
	p.Join()
}

// Join stops both streams, waits for the workers to finish the async tasks
// already queued, and forfeits any remaining outstanding work. Sync tasks
// still queued are dropped. After Join, new tasks are dropped and
// [TaskPool.Start] panics.
//
// Join may be called more than once and from any goroutine other than a
// worker; every call returns once the first has completed.
func (p *TaskPool) Join() {
	if !p.joining.CompareAndSwap(false, true) {
		<-p.joined
		return
	}

	p.admit.Lock()
	p.mu.Lock()
	p.state.Store(poolDraining)
	workers := p.workers
	p.mu.Unlock()
	p.admit.Unlock()

	p.async.Stop()
	p.sync.Stop()
	if workers != nil {
		workers.Join()
	}

	dropped := p.abandonQueued(&p.async) + p.abandonQueued(&p.sync)
	p.outstanding.Reset()
	p.state.Store(poolJoined)
	close(p.joined)
	p.logger.Debug("task pool joined", zap.Int("dropped", dropped))
}

func (p *TaskPool) abandonQueued(q *Queue[poolTask]) int {
	n := 0
	for {
		t, ok := q.Pop()
		if !ok {
			return n
		}
		if t.run == nil {
			continue
		}
		n++
		if t.abandon != nil {
			t.abandon()
		}
	}
}

// Cancel requests a stop on the workers, so that each exits after its current
// task without draining the async stream, and then joins the pool.
func (p *TaskPool) Cancel() {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	if workers != nil {
		workers.RequestStop()
	}
	p.Join()
}

// Joined returns a channel that is closed once [TaskPool.Join] has completed.
func (p *TaskPool) Joined() <-chan struct{} {
	return p.joined
}
