// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otc9y

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
)

const meterName = "otc9y"

// MetricsTask adds metrics collection to a task. Each run adds one to
// metricName+".count" and records its duration in seconds to
// metricName+".duration". A run that panics also adds one to
// metricName+".errors".
func MetricsTask(metricName string, task func()) func() {
	if task == nil {
		panic("task must be non-nil")
	}
	fn := MetricsFunc(metricName, func() (struct{}, error) {
		task()
		return struct{}{}, nil
	})
	return func() {
		_, _ = fn()
	}
}

// MetricsFunc is like [MetricsTask] for a function returning a result.
// Returned errors are counted in metricName+".errors" as well.
func MetricsFunc[T any](metricName string, fn func() (T, error)) func() (T, error) {
	if fn == nil {
		panic("task must be non-nil")
	}
	meter := otel.GetMeterProvider().Meter(meterName)
	taskCounter, _ := meter.Int64Counter(metricName + ".count")
	taskDuration, _ := meter.Float64Histogram(metricName + ".duration")
	errorCounter, _ := meter.Int64Counter(metricName + ".errors")

	return func() (T, error) {
		ctx := context.Background()
		startTime := time.Now()
		taskCounter.Add(ctx, 1)

		failed := true
		defer func() {
			taskDuration.Record(ctx, time.Since(startTime).Seconds())
			if failed {
				errorCounter.Add(ctx, 1)
			}
		}()

		result, err := fn()
		failed = err != nil
		return result, err
	}
}
