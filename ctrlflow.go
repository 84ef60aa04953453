// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"cmp"
	"sync/atomic"
	"time"

	"github.com/addrummond/heap"
)

// Idle is a handle to a function re-queued on a pool's sync stream for as
// long as it keeps returning true. See [TaskPool.StartIdle].
type Idle struct {
	p       *TaskPool
	fn      func() bool
	stopped atomic.Bool
}

// StartIdle queues fn on the sync stream and queues it again each time it
// returns true, until it returns false, panics, or [Idle.Stop] is called.
// While the idle function is active [TaskPool.Run] does not return. Panics if
// fn is nil.
func (p *TaskPool) StartIdle(fn func() bool) *Idle {
	if fn == nil {
		panic("idle function must be non-nil")
	}
	idle := &Idle{p: p, fn: fn}
	p.Sync(idle.step)
	return idle
}

func (idle *Idle) step() {
	if idle.stopped.Load() {
		return
	}
	if !idle.fn() {
		idle.stopped.Store(true)
		return
	}
	if !idle.stopped.Load() {
		idle.p.Sync(idle.step)
	}
}

// Stop prevents the idle function from being called again. Returns false if
// it had already stopped.
func (idle *Idle) Stop() bool {
	return idle.stopped.CompareAndSwap(false, true)
}

// Active reports whether the idle function may still be called.
func (idle *Idle) Active() bool {
	return !idle.stopped.Load()
}

// Timer is a handle to a function called periodically on a pool's owner
// goroutine. See [TaskPool.StartTimer].
type Timer struct {
	p        *TaskPool
	fn       func() bool
	interval atomic.Int64
	active   atomic.Bool
}

// StartTimer arranges for fn to be called on the owner goroutine every
// interval, for as long as it returns true and [Timer.Stop] has not been
// called. Timers fire from within [TaskPool.RunOnce], so an interval is a
// lower bound on the time between calls. An active timer counts as one unit of
// outstanding work, so [TaskPool.Run] does not return while it is active.
//
// A panic escaping fn stops the timer and is passed to the runtime's
// unhandled-panic handler. Panics if fn is nil or interval is not positive.
func (p *TaskPool) StartTimer(fn func() bool, interval time.Duration) *Timer {
	if fn == nil {
		panic("timer function must be non-nil")
	}
	if interval <= 0 {
		panic("timer interval must be positive")
	}
	t := &Timer{p: p, fn: fn}
	t.interval.Store(int64(interval))
	if !p.admitWork(func() { t.active.Store(true) }) {
		p.drop(poolTask{}, "timer")
		return t
	}
	// Scheduling happens on the owner, which alone touches the heap.
	p.Sync(func() {
		if t.active.Load() {
			p.schedule(t, time.Now())
		}
	})
	return t
}

// SetInterval changes the interval used to schedule the next call. Panics if
// d is not positive.
func (t *Timer) SetInterval(d time.Duration) {
	if d <= 0 {
		panic("timer interval must be positive")
	}
	t.interval.Store(int64(d))
}

// Interval returns the timer's current interval.
func (t *Timer) Interval() time.Duration {
	return time.Duration(t.interval.Load())
}

// Stop prevents the timer from firing again and releases its unit of
// outstanding work. Returns false if it had already stopped.
func (t *Timer) Stop() bool {
	if !t.active.CompareAndSwap(true, false) {
		return false
	}
	t.p.release()
	return true
}

// Active reports whether the timer may still fire.
func (t *Timer) Active() bool {
	return t.active.Load()
}

type timerEntry struct {
	deadline time.Time
	seq      uint64
	timer    *Timer
}

func (a *timerEntry) Cmp(b *timerEntry) int {
	if c := a.deadline.Compare(b.deadline); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func (p *TaskPool) schedule(t *Timer, from time.Time) {
	p.timerSeq++
	heap.PushOrderable(&p.timers, timerEntry{
		deadline: from.Add(t.Interval()),
		seq:      p.timerSeq,
		timer:    t,
	})
}

// fireTimers calls every timer whose deadline has passed and returns how long
// the owner may wait before the next one is due, capped at the poll interval.
// Entries for stopped timers are discarded as they surface.
func (p *TaskPool) fireTimers() time.Duration {
	now := time.Now()
	for {
		e, ok := heap.Peek(&p.timers)
		if !ok {
			return p.pollInterval
		}
		if !e.timer.Active() {
			_, _ = heap.PopOrderable(&p.timers)
			continue
		}
		if wait := e.deadline.Sub(now); wait > 0 {
			return min(wait, p.pollInterval)
		}
		_, _ = heap.PopOrderable(&p.timers)
		p.fire(e.timer)
		now = time.Now()
	}
}

func (p *TaskPool) fire(t *Timer) {
	again := false
	if pe := recoverInto(ErrCallbackPanic, func() {
		again = t.fn()
	}); pe != nil {
		t.Stop()
		p.rt.HandlePanic(pe)
		return
	}
	if !again {
		t.Stop()
		return
	}
	if t.Active() {
		p.schedule(t, time.Now())
	}
}
