// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// stopState is shared by every copy of a [StopSource] and the tokens derived
// from it.
type stopState struct {
	mu        sync.Mutex
	stopping  atomic.Bool
	done      chan struct{}
	callbacks []*StopCallback // guarded by mu; nil once stopping
}

func newStopState() *stopState {
	return &stopState{
		done: make(chan struct{}),
	}
}

func (s *stopState) requestStop() bool {
	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		return false
	}
	s.stopping.Store(true)
	close(s.done)
	// Callbacks are taken one at a time so that one closed by an earlier
	// callback, or concurrently, does not run.
	for len(s.callbacks) > 0 {
		cb := s.callbacks[0]
		s.callbacks = s.callbacks[1:]
		s.mu.Unlock()
		cb.fn()
		s.mu.Lock()
	}
	s.callbacks = nil
	s.mu.Unlock()
	return true
}

// add registers cb, or runs it immediately on the calling goroutine if a stop
// has already been requested.
func (s *stopState) add(cb *StopCallback) {
	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		cb.fn()
		return
	}
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}

func (s *stopState) remove(cb *StopCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.callbacks, cb); i >= 0 {
		s.callbacks = slices.Delete(s.callbacks, i, i+1)
	}
}

// StopSource is the requesting side of cooperative cancellation. Copies of a
// StopSource share the same state. The zero value has no state: a stop is not
// possible and [StopSource.RequestStop] always returns false.
type StopSource struct {
	state *stopState
}

// NewStopSource creates a stop source with fresh state.
func NewStopSource() StopSource {
	return StopSource{state: newStopState()}
}

// Token returns a token that observes this source's state.
func (s StopSource) Token() StopToken {
	return StopToken(s)
}

// RequestStop requests cancellation. If this call performed the transition,
// every registered [StopCallback] is invoked on the calling goroutine in
// registration order, and the call returns true. Later calls return false.
//
// Callbacks run without the state lock held, so a callback may register
// further callbacks, which run immediately, or close any callback including
// its own. A callback closed before its turn does not run.
func (s StopSource) RequestStop() bool {
	if s.state == nil {
		return false
	}
	return s.state.requestStop()
}

// StopRequested reports whether a stop has been requested.
func (s StopSource) StopRequested() bool {
	return s.state != nil && s.state.stopping.Load()
}

// StopPossible reports whether the source has state.
func (s StopSource) StopPossible() bool {
	return s.state != nil
}

// StopToken is the observing side of cooperative cancellation. Long-running
// work is expected to poll [StopToken.StopRequested] or select on
// [StopToken.Done]; nothing is interrupted preemptively. The zero value never
// reports a stop.
type StopToken struct {
	state *stopState
}

// StopRequested reports whether a stop has been requested.
func (t StopToken) StopRequested() bool {
	return t.state != nil && t.state.stopping.Load()
}

// StopPossible reports whether the token is associated with a stop state.
func (t StopToken) StopPossible() bool {
	return t.state != nil
}

// Done returns a channel that is closed when a stop is requested. For a token
// without state it returns nil, which blocks forever in a select.
func (t StopToken) Done() <-chan struct{} {
	if t.state == nil {
		return nil
	}
	return t.state.done
}

// StopCallback is a function registered to run when a stop is requested.
type StopCallback struct {
	state *stopState
	fn    func()
}

// NewStopCallback registers fn with the token's state. If a stop has already
// been requested, or if the token has no state, fn runs immediately on the
// calling goroutine before NewStopCallback returns. Panics if fn is nil.
func NewStopCallback(t StopToken, fn func()) *StopCallback {
	if fn == nil {
		panic("callback function must be non-nil")
	}
	cb := &StopCallback{
		state: t.state,
		fn:    fn,
	}
	if cb.state == nil {
		fn()
		return cb
	}
	cb.state.add(cb)
	return cb
}

// Close deregisters the callback. It has no effect if the callback has
// already started, and it does not wait for a callback running on another
// goroutine to return.
func (cb *StopCallback) Close() {
	if cb.state != nil {
		cb.state.remove(cb)
	}
}

// WithStopToken returns a copy of ctx that is canceled when a stop is
// requested on t, in addition to the usual conditions. The returned cancel
// function releases the registration and must be called once the context is
// no longer needed.
func WithStopToken(ctx context.Context, t StopToken) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if !t.StopPossible() {
		// A token without state can never request a stop.
		return ctx, cancel
	}
	cb := NewStopCallback(t, cancel)
	return ctx, func() {
		cb.Close()
		cancel()
	}
}
