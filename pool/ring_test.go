// File: pool/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
)

func TestRingFIFO(t *testing.T) {
	r := NewRing[int](8)
	for i := 0; i < 8; i++ {
		require.True(t, r.Push(i))
	}
	require.False(t, r.Push(99), "ring should be full")
	for i := 0; i < 8; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := r.Pop()
	require.False(t, ok)
}

func TestRingRoundsCapacityUp(t *testing.T) {
	r := NewRing[int](5)
	require.Equal(t, 8, r.Cap())
}

func TestRingPopAll(t *testing.T) {
	r := NewRing[int](4)
	require.Nil(t, r.PopAll())
	r.Push(1)
	r.Push(2)
	require.Equal(t, []int{1, 2}, r.PopAll())
	require.Equal(t, 0, r.Len())
}

func TestRingSingleProducerSingleConsumer(t *testing.T) {
	const n = 10000
	r := NewRing[int](1024)
	var wg sync.WaitGroup
	wg.Add(1)
	out := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(out) < n {
			if v, ok := r.Pop(); ok {
				out = append(out, v)
			}
		}
	}()
	for i := 0; i < n; {
		if r.Push(i) {
			i++
		}
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.Equal(t, i, out[i])
	}
}

func TestNotificationRing(t *testing.T) {
	q := NewNotificationRing(0)
	require.Equal(t, 0, q.Len())
	require.True(t, q.Push(api.Notification{Kind: api.NotificationSendCompleted, ID: 7}))
	require.True(t, q.Push(api.Notification{Kind: api.NotificationTimestamp, ID: 8}))
	batch := q.Drain()
	require.Len(t, batch, 2)
	require.Equal(t, uint64(7), batch[0].ID)
	require.Equal(t, uint64(8), batch[1].ID)
	require.Nil(t, q.Drain())
}
