// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otc9y

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "otc9y"

// TracedTask wraps a task so that each run is recorded as a span named
// operationName. The span's parent is the span in ctx at the time TracedTask
// is called, which carries the trace across the hop from the submitting
// goroutine to whichever goroutine runs the task. The task receives a
// context holding the new span.
func TracedTask(ctx context.Context, operationName string, task func(ctx context.Context)) func() {
	if task == nil {
		panic("task must be non-nil")
	}
	traced := TracedFunc(ctx, operationName, func(ctx context.Context) (struct{}, error) {
		task(ctx)
		return struct{}{}, nil
	})
	return func() {
		_, _ = traced()
	}
}

// TracedFunc is like [TracedTask] for a function returning a result. A
// returned error is recorded on the span and sets its status.
func TracedFunc[T any](ctx context.Context, operationName string, fn func(ctx context.Context) (T, error)) func() (T, error) {
	if fn == nil {
		panic("task must be non-nil")
	}
	// Only the span context is kept, so cancellation of ctx does not leak
	// into the task.
	parent := trace.SpanContextFromContext(ctx)
	return func() (T, error) {
		runCtx := context.Background()
		if parent.IsValid() {
			runCtx = trace.ContextWithSpanContext(runCtx, parent)
		}
		runCtx, span := otel.Tracer(tracerName).Start(runCtx, operationName)
		defer span.End()

		panicked := true
		defer func() {
			if panicked {
				r := recover()
				span.RecordError(fmt.Errorf("panic: %v", r))
				span.SetStatus(codes.Error, "panic")
				panic(r)
			}
		}()
		result, err := fn(runCtx)
		panicked = false

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}
