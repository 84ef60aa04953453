// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y

import (
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the bounded wait used by task pool workers and by
// [TaskPool.RunOnce] when no other deadline applies.
const DefaultPollInterval = 100 * time.Millisecond

// TaskPoolOption configures a [TaskPool].
type TaskPoolOption func(*taskPoolConfig)

type taskPoolConfig struct {
	concurrency  int
	pollInterval time.Duration
	runtime      *Runtime
	logger       *zap.Logger
}

// WithConcurrency sets the number of worker goroutines servicing the async
// stream. Defaults to [DefaultConcurrency]. Panics if n is not positive.
func WithConcurrency(n int) TaskPoolOption {
	if n < 1 {
		panic("concurrency must be positive")
	}
	return func(c *taskPoolConfig) {
		c.concurrency = n
	}
}

// WithPollInterval sets the bounded wait used by workers and by
// [TaskPool.RunOnce]. Panics if d is not positive.
func WithPollInterval(d time.Duration) TaskPoolOption {
	if d <= 0 {
		panic("poll interval must be positive")
	}
	return func(c *taskPoolConfig) {
		c.pollInterval = d
	}
}

// WithRuntime sets the runtime receiving panics from the pool's tasks.
// Defaults to a private runtime created with [NewRuntime].
func WithRuntime(rt *Runtime) TaskPoolOption {
	return func(c *taskPoolConfig) {
		c.runtime = rt
	}
}

// WithLogger sets the logger for pool lifecycle events. Defaults to the
// runtime's logger.
func WithLogger(logger *zap.Logger) TaskPoolOption {
	return func(c *taskPoolConfig) {
		c.logger = logger
	}
}
