// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"fmt"
	"runtime/debug"
)

// sentinel is a string-backed error that can be declared as a constant.
type sentinel string

func (e sentinel) Error() string {
	return string(e)
}

// ErrTaskPanic is the kind of a [PanicError] recovered from a task body.
const ErrTaskPanic = sentinel("task panicked")

// ErrCallbackPanic is the kind of a [PanicError] recovered from a callback
// executed by [Runtime.SyncPoint], a continuation, or a [Timer].
const ErrCallbackPanic = sentinel("callback panicked")

// ErrPromiseBroken resolves a [Future] whose work was dropped by a joined
// [TaskPool] before it could run.
const ErrPromiseBroken = sentinel("promise broken")

// PanicError carries a recovered panic value across goroutines, together with
// the stack of the goroutine that panicked.
type PanicError struct {
	Kind  error
	Value any
	Stack []byte
}

func newPanicError(kind error, value any) *PanicError {
	return &PanicError{
		Kind:  kind,
		Value: value,
		Stack: debug.Stack(),
	}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Value)
}

// Unwrap returns the panic kind and, if the panic value was itself an error,
// that error, so that [errors.Is] matches both.
func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{e.Kind, err}
	}
	return []error{e.Kind}
}

// recoverInto runs fn and converts any panic into a *PanicError of the given
// kind. A nil return means fn returned normally.
func recoverInto(kind error, fn func()) (pe *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			pe = newPanicError(kind, r)
		}
	}()
	fn()
	return nil
}
