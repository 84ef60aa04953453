// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otc9y_test

import (
	"context"
	"errors"
	"testing"

	"github.com/petenewcomb/c9y-go"
	"github.com/petenewcomb/c9y-go/otc9y"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	return logs
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestLoggedFunc(t *testing.T) {
	chk := require.New(t)
	logs := observeLogs(t)

	boom := errors.New("boom")
	fn := otc9y.LoggedFunc("fetch", func() (int, error) {
		return 0, boom
	})
	_, err := fn()
	chk.ErrorIs(err, boom)

	chk.Equal(1, logs.FilterMessage("Starting task").Len())
	failed := logs.FilterMessage("Task failed").All()
	chk.Len(failed, 1)
	chk.Equal("fetch", failed[0].ContextMap()["operation"])
	chk.Equal(zapcore.ErrorLevel, failed[0].Level)
}

func TestLoggedTaskPanic(t *testing.T) {
	chk := require.New(t)
	logs := observeLogs(t)

	task := otc9y.LoggedTask("explode", func() {
		panic("kaboom")
	})
	chk.PanicsWithValue("kaboom", task)
	chk.Equal(1, logs.FilterMessage("Task panicked").Len())
	chk.Equal(0, logs.FilterMessage("Task completed").Len())
}

func TestTracedFuncParentsOnSubmitter(t *testing.T) {
	chk := require.New(t)
	sr := recordSpans(t)

	ctx, root := otel.Tracer("test").Start(context.Background(), "root")
	boom := errors.New("boom")
	fn := otc9y.TracedFunc(ctx, "child", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	root.End()

	// Run the function on another goroutine, as a task pool would.
	tp := c9y.NewTaskPool(c9y.WithConcurrency(1))
	f := c9y.AsyncFuture(tp, fn)
	tp.Run()
	_, err := f.Get()
	chk.ErrorIs(err, boom)

	spans := sr.Ended()
	chk.Len(spans, 2)
	child := spans[1]
	chk.Equal("child", child.Name())
	chk.Equal(root.SpanContext().SpanID(), child.Parent().SpanID())
	chk.Equal(root.SpanContext().TraceID(), child.SpanContext().TraceID())
	chk.Equal(codes.Error, child.Status().Code)
	chk.Len(child.Events(), 1)
}

func TestTracedTaskRecordsPanic(t *testing.T) {
	chk := require.New(t)
	sr := recordSpans(t)

	task := otc9y.TracedTask(context.Background(), "explode", func(ctx context.Context) {
		panic("kaboom")
	})
	chk.PanicsWithValue("kaboom", task)

	spans := sr.Ended()
	chk.Len(spans, 1)
	chk.Equal(codes.Error, spans[0].Status().Code)
	chk.False(spans[0].Parent().IsValid())
}

func TestMetricsFuncPassesThrough(t *testing.T) {
	chk := require.New(t)
	fn := otc9y.MetricsFunc("calc", func() (int, error) {
		return 42, nil
	})
	v, err := fn()
	chk.NoError(err)
	chk.Equal(42, v)

	ran := false
	otc9y.MetricsTask("calc", func() { ran = true })()
	chk.True(ran)
}

func TestInstrumentedFunc(t *testing.T) {
	chk := require.New(t)
	logs := observeLogs(t)
	sr := recordSpans(t)

	fn := otc9y.InstrumentedFunc(context.Background(), "sum", func(ctx context.Context) (int, error) {
		return 55, nil
	})
	v, err := fn()
	chk.NoError(err)
	chk.Equal(55, v)
	chk.Equal(1, logs.FilterMessage("Task completed").Len())
	chk.Len(sr.Ended(), 1)
	chk.Equal("sum", sr.Ended()[0].Name())
}
