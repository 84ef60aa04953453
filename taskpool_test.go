// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y_test

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petenewcomb/c9y-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"
)

// goroutineID parses the current goroutine's id from its stack header, which
// lets tests check which goroutine ran a task.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		panic(err)
	}
	return id
}

func newTestPool(opts ...c9y.TaskPoolOption) *c9y.TaskPool {
	opts = append([]c9y.TaskPoolOption{c9y.WithPollInterval(5 * time.Millisecond)}, opts...)
	return c9y.NewTaskPool(opts...)
}

func TestTaskPoolNilTaskPanics(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	chk.PanicsWithValue("task must be non-nil", func() {
		tp.Async(nil)
	})
	chk.PanicsWithValue("task must be non-nil", func() {
		tp.Sync(nil)
	})
	chk.PanicsWithValue("concurrency must be positive", func() {
		c9y.WithConcurrency(0)
	})
	chk.PanicsWithValue("poll interval must be positive", func() {
		c9y.WithPollInterval(0)
	})
}

func TestTaskPoolRunWithNoWork(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(2))
	chk.Equal(2, tp.Concurrency())
	tp.Run()
	<-tp.Joined()
	chk.Equal(int64(0), tp.Outstanding())
}

// TestTaskPoolDrain checks that every task runs exactly once and that sync
// tasks run only on the goroutine calling Run, whatever mix of nested
// submissions is generated.
func TestTaskPoolDrain(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		concurrency := rapid.IntRange(1, 4).Draw(t, "concurrency")
		asyncCount := rapid.IntRange(0, 30).Draw(t, "async")
		syncCount := rapid.IntRange(0, 30).Draw(t, "sync")
		nested := rapid.Bool().Draw(t, "nested")

		tp := newTestPool(c9y.WithConcurrency(concurrency))
		owner := goroutineID()

		var asyncRuns, syncRuns atomic.Int32
		var wrongGoroutine atomic.Bool
		syncTask := func() {
			if goroutineID() != owner {
				wrongGoroutine.Store(true)
			}
			syncRuns.Add(1)
		}
		for range asyncCount {
			tp.Async(func() {
				asyncRuns.Add(1)
				if nested {
					tp.Sync(syncTask)
				}
			})
		}
		for range syncCount {
			tp.Sync(func() {
				syncTask()
				if nested {
					tp.Async(func() { asyncRuns.Add(1) })
				}
			})
		}
		tp.Run()

		expectedAsync, expectedSync := asyncCount, syncCount
		if nested {
			expectedAsync += syncCount
			expectedSync += asyncCount
		}
		require.Equal(t, int32(expectedAsync), asyncRuns.Load())
		require.Equal(t, int32(expectedSync), syncRuns.Load())
		require.False(t, wrongGoroutine.Load())
		require.Equal(t, int64(0), tp.Outstanding())
	})
}

func TestTaskPoolAsyncRunsConcurrently(t *testing.T) {
	chk := require.New(t)
	const n = 4
	tp := newTestPool(c9y.WithConcurrency(n))

	// Every task waits for all of them to have started.
	started := c9y.NewLatch(n)
	for range n {
		tp.Async(func() {
			started.ArriveAndWait(1)
		})
	}
	tp.Run()
	chk.True(started.TryWait())
}

func TestTaskPoolRunOnceLeavesWorkQueued(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(1))

	count := 0
	tp.Sync(func() { count++ })
	tp.Sync(func() { count++ })
	chk.Equal(int64(2), tp.Outstanding())

	chk.True(tp.RunOnce())
	chk.Equal(1, count)
	chk.Equal(int64(1), tp.Outstanding())

	tp.Join()
	chk.Equal(1, count)
	chk.Equal(int64(0), tp.Outstanding())
	chk.False(tp.RunOnce())
}

func TestTaskPoolRunOnceWaitsBriefly(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(1))
	defer tp.Join()

	start := time.Now()
	chk.False(tp.RunOnce())
	chk.GreaterOrEqual(time.Since(start), 5*time.Millisecond)
}

func TestTaskPoolJoinDrainsAsync(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(2))

	var ran atomic.Int32
	for range 20 {
		tp.Async(func() { ran.Add(1) })
	}
	tp.Start()
	tp.Join()
	chk.Equal(int32(20), ran.Load())
}

func TestTaskPoolJoinIsIdempotent(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(2))
	tp.Start()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tp.Join()
		}()
	}
	wg.Wait()
	tp.Join()
	<-tp.Joined()

	chk.PanicsWithValue("task pool already joined", tp.Start)
}

func TestTaskPoolDropsAfterJoin(t *testing.T) {
	chk := require.New(t)
	core, logs := observer.New(zapcore.WarnLevel)
	tp := newTestPool(c9y.WithLogger(zap.New(core)))
	tp.Join()

	ran := false
	tp.Async(func() { ran = true })
	tp.Sync(func() { ran = true })
	chk.False(ran)
	chk.Equal(int64(0), tp.Outstanding())
	chk.Equal(2, logs.FilterMessage("task dropped by joined pool").Len())

	f := c9y.AsyncFuture(tp, func() (int, error) { return 1, nil })
	_, err := f.Get()
	chk.ErrorIs(err, c9y.ErrPromiseBroken)
}

func TestTaskPoolCancel(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(1))

	release := make(chan struct{})
	var ran atomic.Int32
	tp.Async(func() {
		ran.Add(1)
		<-release
	})
	tp.Start()
	for tp.Outstanding() > 0 && ran.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	broken := c9y.AsyncFuture(tp, func() (int, error) {
		ran.Add(1)
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		tp.Cancel()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-done

	chk.Equal(int32(1), ran.Load())
	_, err := broken.Get()
	chk.ErrorIs(err, c9y.ErrPromiseBroken)
}

func TestTaskPoolPanicGoesToHook(t *testing.T) {
	chk := require.New(t)
	rt := c9y.NewRuntime()
	var mu sync.Mutex
	var got []*c9y.PanicError
	rt.SetUnhandledPanic(func(err *c9y.PanicError) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})
	tp := newTestPool(c9y.WithRuntime(rt))
	chk.Same(rt, tp.Runtime())

	tp.Async(func() { panic("async") })
	tp.Sync(func() { panic("sync") })
	tp.Run()

	chk.Len(got, 2)
	values := []any{got[0].Value, got[1].Value}
	chk.ElementsMatch([]any{"async", "sync"}, values)
	for _, pe := range got {
		chk.ErrorIs(pe, c9y.ErrTaskPanic)
	}
	chk.Equal(int64(0), tp.Outstanding())
}

func TestTaskPoolStreamsAsExecutors(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	owner := goroutineID()

	f := c9y.AsyncFuture(tp, func() (int, error) { return 20, nil })
	g := c9y.Then(f, tp.AsyncStream(), func(v int, err error) (int, error) {
		return v + 1, err
	})
	onOwner := false
	h := c9y.Then(g, tp.SyncStream(), func(v int, err error) (int, error) {
		onOwner = goroutineID() == owner
		return v * 2, err
	})
	tp.Run()

	v, err := h.Get()
	chk.NoError(err)
	chk.Equal(42, v)
	chk.True(onOwner)
}

func TestTaskPoolThenOnJoinedStreamBreaksPromise(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	tp.Join()

	f, resolve := c9y.NewPromise[int]()
	g := c9y.Then(f, tp.SyncStream(), func(v int, err error) (int, error) {
		return v, err
	})
	resolve(1, nil)
	_, err := g.Get()
	chk.ErrorIs(err, c9y.ErrPromiseBroken)
}

// TestTaskPoolSubmitRacingJoin checks that work submitted concurrently with
// Join is either run or dropped, never stranded on a stopped stream.
func TestTaskPoolSubmitRacingJoin(t *testing.T) {
	chk := require.New(t)
	const producers = 8
	const perProducer = 200

	for iteration := range 50 {
		tp := newTestPool(c9y.WithConcurrency(2))
		if iteration%2 == 0 {
			tp.Start()
		}

		futures := make([][]*c9y.Future[int], producers)
		var g errgroup.Group
		for i := range producers {
			g.Go(func() error {
				for j := range perProducer {
					futures[i] = append(futures[i], c9y.AsyncFuture(tp, func() (int, error) {
						return j, nil
					}))
				}
				return nil
			})
		}
		tp.Join()
		chk.NoError(g.Wait())

		for i := range producers {
			for j, f := range futures[i] {
				select {
				case <-f.Done():
				case <-time.After(time.Second):
					chk.Failf("future never resolved", "producer %d task %d", i, j)
				}
				v, err := f.Get()
				if err == nil {
					chk.Equal(j, v)
				} else {
					chk.ErrorIs(err, c9y.ErrPromiseBroken)
				}
			}
		}
		chk.Equal(int64(0), tp.Outstanding())
	}
}
