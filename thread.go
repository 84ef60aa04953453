// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"sync"
)

// Thread is a goroutine that owns a [StopSource] and can be joined. It follows
// the "jthread" pattern: [Thread.Close] requests a stop and then joins, so that
// the goroutine does not outlive its owner.
//
// A Thread must be created with [Go].
type Thread struct {
	stop StopSource
	done chan struct{}

	mu       sync.Mutex
	joinable bool
}

// Go starts fn in a new goroutine, passing it the token of the thread's own
// stop source. Panics if fn is nil.
//
// A panic that escapes fn is not recovered and terminates the process, as for
// any goroutine. Report failures through an explicit channel instead.
func Go(fn func(StopToken)) *Thread {
	if fn == nil {
		panic("thread function must be non-nil")
	}
	t := &Thread{
		stop:     NewStopSource(),
		done:     make(chan struct{}),
		joinable: true,
	}
	token := t.stop.Token()
	go func() {
		defer close(t.done)
		fn(token)
	}()
	return t
}

// Joinable reports whether the thread has been neither joined nor detached.
func (t *Thread) Joinable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joinable
}

// Join blocks until the thread's function has returned. Panics if the thread
// is not joinable.
func (t *Thread) Join() {
	t.release("thread is not joinable")
	<-t.done
}

// Detach gives up ownership of the thread, which keeps running on its own.
// Panics if the thread is not joinable.
func (t *Thread) Detach() {
	t.release("thread is not joinable")
}

func (t *Thread) release(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joinable {
		panic(msg)
	}
	t.joinable = false
}

// Done returns a channel that is closed when the thread's function returns.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// StopSource returns the thread's stop source, or a source without state if
// the thread is no longer joinable.
func (t *Thread) StopSource() StopSource {
	if !t.Joinable() {
		return StopSource{}
	}
	return t.stop
}

// StopToken returns a token for [Thread.StopSource].
func (t *Thread) StopToken() StopToken {
	return t.StopSource().Token()
}

// RequestStop requests a stop on the thread's own stop source. Returns true
// if this call performed the transition.
func (t *Thread) RequestStop() bool {
	return t.stop.RequestStop()
}

// Close requests a stop and joins the thread if it is still joinable, and
// otherwise does nothing.
func (t *Thread) Close() {
	t.mu.Lock()
	joinable := t.joinable
	t.joinable = false
	t.mu.Unlock()
	if joinable {
		t.stop.RequestStop()
		<-t.done
	}
}
