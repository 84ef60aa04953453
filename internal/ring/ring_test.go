// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package ring_test

import (
	"testing"

	"github.com/petenewcomb/c9y-go/internal/ring"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestQueueBasicFunctionality(t *testing.T) {
	chk := require.New(t)
	q := ring.Queue[int]{}

	chk.Equal(0, q.Len())
	_, ok := q.PopFront()
	chk.False(ok)

	for i := range 10 {
		q.PushBack(i)
	}
	chk.Equal(10, q.Len())

	for i := range 10 {
		v, ok := q.PopFront()
		chk.True(ok)
		chk.Equal(i, v)
	}
	chk.Equal(0, q.Len())
}

// TestQueueWithRapid checks the queue against a slice model while it wraps
// around and grows.
func TestQueueWithRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := ring.Queue[int]{}
		var model []int

		t.Repeat(map[string]func(*rapid.T){
			"pushBack": func(t *rapid.T) {
				val := rapid.Int().Draw(t, "value")
				q.PushBack(val)
				model = append(model, val)
			},
			"popFront": func(t *rapid.T) {
				if len(model) == 0 {
					t.Skip("queue is empty")
				}
				expected := model[0]
				model = model[1:]
				val, ok := q.PopFront()
				require.True(t, ok)
				require.Equal(t, expected, val)
			},
			"": func(t *rapid.T) {
				require.Equal(t, len(model), q.Len())
			},
		})
	})
}
