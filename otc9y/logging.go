// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otc9y provides decorators that add logging, OpenTelemetry tracing,
// and OpenTelemetry metrics to functions run on c9y task pools and mailboxes.
// Each decorator returns a function of the same shape as the one it wraps, so
// it can be passed anywhere the wrapped function could.
package otc9y

import (
	"time"

	"go.uber.org/zap"
)

const component = "otc9y"

// LoggedTask adds structured logging to a task. The start and completion of
// each run are logged at debug level with the run's duration. A panic is
// logged at error level and then propagated.
func LoggedTask(operationName string, task func()) func() {
	if task == nil {
		panic("task must be non-nil")
	}
	return func() {
		_, _ = LoggedFunc(operationName, func() (struct{}, error) {
			task()
			return struct{}{}, nil
		})()
	}
}

// LoggedFunc adds structured logging to a function returning a result. Errors
// are logged at error level.
func LoggedFunc[T any](operationName string, fn func() (T, error)) func() (T, error) {
	if fn == nil {
		panic("task must be non-nil")
	}
	return func() (T, error) {
		logger := zap.L()
		logger.Debug("Starting task",
			zap.String("operation", operationName),
			zap.String("component", component))

		startTime := time.Now()
		panicked := true
		defer func() {
			if panicked {
				logger.Error("Task panicked",
					zap.String("operation", operationName),
					zap.String("component", component),
					zap.Duration("duration", time.Since(startTime)))
			}
		}()
		result, err := fn()
		panicked = false
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Task failed",
				zap.String("operation", operationName),
				zap.String("component", component),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Task completed",
				zap.String("operation", operationName),
				zap.String("component", component),
				zap.Duration("duration", duration))
		}
		return result, err
	}
}
