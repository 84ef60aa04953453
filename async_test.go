// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package c9y_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/petenewcomb/c9y-go"
	"github.com/stretchr/testify/require"
)

func TestAsyncCallbackOnOwner(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	owner := goroutineID()

	var got int
	var onOwner bool
	c9y.Async(tp, func() (int, error) {
		return 6 * 7, nil
	}, func(v int, err error) {
		chk.NoError(err)
		got = v
		onOwner = goroutineID() == owner
	})
	tp.Run()
	chk.Equal(42, got)
	chk.True(onOwner)
}

func TestAsyncDeliversPanic(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()

	var got error
	c9y.Async(tp, func() (int, error) {
		panic("oops")
	}, func(_ int, err error) {
		got = err
	})
	tp.Run()
	chk.ErrorIs(got, c9y.ErrTaskPanic)

	chk.PanicsWithValue("callback function must be non-nil", func() {
		c9y.Async[int](tp, func() (int, error) { return 0, nil }, nil)
	})
}

func TestParallel(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(3))

	boom := errors.New("boom")
	var ran atomic.Int32
	tasks := []func() error{
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return boom },
		func() error { ran.Add(1); return nil },
	}
	calls := 0
	var got error
	c9y.Parallel(tp, tasks, func(err error) {
		calls++
		got = err
	})
	tp.Run()
	chk.Equal(int32(3), ran.Load())
	chk.Equal(1, calls)
	chk.ErrorIs(got, boom)
}

func TestParallelEmpty(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	called := false
	c9y.Parallel(tp, nil, func(err error) {
		chk.NoError(err)
		called = true
	})
	tp.Run()
	chk.True(called)
}

func TestSequenceStopsAtFirstError(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(4))

	boom := errors.New("boom")
	var order []int
	tasks := []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return boom },
		func() error { order = append(order, 3); return nil },
	}
	var got error
	c9y.Sequence(tp, tasks, func(err error) {
		got = err
	})
	tp.Run()
	chk.Equal([]int{1, 2}, order)
	chk.ErrorIs(got, boom)
}

func TestSequenceSuccess(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	var order []int
	tasks := make([]func() error, 5)
	for i := range tasks {
		tasks[i] = func() error {
			order = append(order, i)
			return nil
		}
	}
	called := false
	c9y.Sequence(tp, tasks, func(err error) {
		chk.NoError(err)
		called = true
	})
	tp.Run()
	chk.True(called)
	chk.Equal([]int{0, 1, 2, 3, 4}, order)
}

func TestParallelWait(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool(c9y.WithConcurrency(2))
	defer tp.Join()

	boom := errors.New("boom")
	var ran atomic.Int32
	err := c9y.ParallelWait(tp,
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return boom },
		func() error { ran.Add(1); panic("oops") },
	)
	chk.Equal(int32(3), ran.Load())
	chk.ErrorIs(err, boom)
	chk.ErrorIs(err, c9y.ErrTaskPanic)

	chk.NoError(c9y.ParallelWait(tp))
}

func TestParallelWaitOnJoinedPool(t *testing.T) {
	chk := require.New(t)
	tp := newTestPool()
	tp.Join()
	err := c9y.ParallelWait(tp, func() error { return nil })
	chk.ErrorIs(err, c9y.ErrPromiseBroken)
}
