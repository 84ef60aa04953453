// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otc9y

import (
	"context"
)

// InstrumentedTask applies logging, metrics, and tracing to a task, all under
// the same operation name.
func InstrumentedTask(ctx context.Context, operationName string, task func(ctx context.Context)) func() {
	if task == nil {
		panic("task must be non-nil")
	}
	return TracedTask(ctx, operationName, func(ctx context.Context) {
		MetricsTask(operationName, LoggedTask(operationName, func() {
			task(ctx)
		}))()
	})
}

// InstrumentedFunc applies logging, metrics, and tracing to a function
// returning a result.
func InstrumentedFunc[T any](ctx context.Context, operationName string, fn func(ctx context.Context) (T, error)) func() (T, error) {
	if fn == nil {
		panic("task must be non-nil")
	}
	return TracedFunc(ctx, operationName, func(ctx context.Context) (T, error) {
		return MetricsFunc(operationName, LoggedFunc(operationName, func() (T, error) {
			return fn(ctx)
		}))()
	})
}
