// File: api/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor and Strand contracts for task dispatch on reactor threads.

package api

// Executor abstracts deferred task execution on reactor worker threads.
type Executor interface {
	// Execute schedules fn for execution.
	Execute(fn func())

	// MoveAndExecute splices a caller-owned sequence then appends fn,
	// atomically with respect to concurrent Execute calls.
	MoveAndExecute(seq *[]func(), fn func())
}

// Strand is a serial executor: at most one thread at a time runs its
// functions, in enqueue order, on top of a backing Executor.
type Strand interface {
	Executor

	// IsRunningInCurrentThread reports whether the calling goroutine is
	// currently executing inside this strand.
	IsRunningInCurrentThread() bool

	// Drain runs all pending functions on the calling thread. Must not
	// be called concurrently with the backing executor's dispatch.
	Drain()

	// Clear drops all pending functions without running them.
	Clear()
}
