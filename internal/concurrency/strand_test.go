// File: internal/concurrency/strand_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// inlineExecutor runs posted functions synchronously.
type inlineExecutor struct{}

func (inlineExecutor) Execute(fn func()) { fn() }

func (inlineExecutor) MoveAndExecute(seq *[]func(), fn func()) {
	if seq != nil {
		for _, f := range *seq {
			f()
		}
		*seq = (*seq)[:0]
	}
	if fn != nil {
		fn()
	}
}

// asyncExecutor runs each posted function on its own goroutine.
type asyncExecutor struct {
	wg sync.WaitGroup
}

func (e *asyncExecutor) Execute(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

func (e *asyncExecutor) MoveAndExecute(seq *[]func(), fn func()) {
	if seq != nil {
		for _, f := range *seq {
			e.Execute(f)
		}
		*seq = (*seq)[:0]
	}
	if fn != nil {
		e.Execute(fn)
	}
}

func TestStrandRunsInOrder(t *testing.T) {
	s := NewStrand(inlineExecutor{})
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		s.Execute(func() { order = append(order, i) })
	}
	require.Len(t, order, 50)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestStrandSerializesConcurrentSubmitters(t *testing.T) {
	backing := &asyncExecutor{}
	s := NewStrand(backing)

	var mu sync.Mutex
	active := 0
	maxActive := 0
	total := 0

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Execute(func() {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()

					mu.Lock()
					active--
					total++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		done := total == 8*200
		mu.Unlock()
		if done {
			break
		}
		require.True(t, time.Now().Before(deadline), "strand did not drain")
		time.Sleep(time.Millisecond)
	}
	backing.wg.Wait()
	require.Equal(t, 1, maxActive, "strand functions overlapped")
}

func TestStrandIsRunningInCurrentThread(t *testing.T) {
	s := NewStrand(inlineExecutor{})
	require.False(t, s.IsRunningInCurrentThread())

	observed := false
	s.Execute(func() { observed = s.IsRunningInCurrentThread() })
	require.True(t, observed)
	require.False(t, s.IsRunningInCurrentThread())
}

func TestStrandMoveAndExecute(t *testing.T) {
	s := NewStrand(inlineExecutor{})
	var order []int
	seq := []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}
	s.MoveAndExecute(&seq, func() { order = append(order, 3) })
	require.Empty(t, seq)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestStrandClearDropsPending(t *testing.T) {
	// A backing executor that never runs keeps work pending.
	var posted []func()
	s := NewStrand(executorFunc(func(fn func()) { posted = append(posted, fn) }))

	ran := false
	s.Execute(func() { ran = true })
	require.Equal(t, 1, s.Len())
	s.Clear()
	require.Equal(t, 0, s.Len())

	// The already-posted runner finds nothing to do.
	for _, fn := range posted {
		fn()
	}
	require.False(t, ran)
}

func TestStrandDrain(t *testing.T) {
	var posted []func()
	s := NewStrand(executorFunc(func(fn func()) { posted = append(posted, fn) }))

	count := 0
	for i := 0; i < 40; i++ {
		s.Execute(func() { count++ })
	}
	s.Drain()
	require.Equal(t, 40, count)
}

// executorFunc adapts a function to api.Executor.
type executorFunc func(fn func())

func (f executorFunc) Execute(fn func()) { f(fn) }

func (f executorFunc) MoveAndExecute(seq *[]func(), fn func()) {
	if seq != nil {
		for _, g := range *seq {
			f(g)
		}
		*seq = (*seq)[:0]
	}
	if fn != nil {
		f(fn)
	}
}
