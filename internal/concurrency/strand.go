// File: internal/concurrency/strand.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strand: a serial executor on top of a backing executor (a reactor's
// deferred queue or a shared parent chronology). A runner is posted
// only on the empty -> nonempty transition and drains a bounded prefix
// per run to amortize posting cost; it never runs concurrently with
// itself.

package concurrency

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-reactor/api"
)

// maxDrainPerRun bounds the number of functions one runner invocation
// executes before re-posting itself.
const maxDrainPerRun = 16

// Strand implements api.Strand.
type Strand struct {
	backing api.Executor

	mu        sync.Mutex
	pending   *queue.Queue
	scheduled bool

	// activeGoroutine holds the id of the goroutine currently draining
	// the strand, zero when idle.
	activeGoroutine atomic.Uint64
}

var _ api.Strand = (*Strand)(nil)

// NewStrand creates a strand over the backing executor.
func NewStrand(backing api.Executor) *Strand {
	return &Strand{
		backing: backing,
		pending: queue.New(),
	}
}

// Execute enqueues fn, posting the runner when the strand transitions
// from empty to nonempty.
func (s *Strand) Execute(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.pending.Add(fn)
	post := !s.scheduled
	if post {
		s.scheduled = true
	}
	s.mu.Unlock()

	if post {
		s.backing.Execute(s.run)
	}
}

// MoveAndExecute splices a caller-owned sequence then appends fn,
// atomically with respect to concurrent Execute calls.
func (s *Strand) MoveAndExecute(seq *[]func(), fn func()) {
	s.mu.Lock()
	if seq != nil {
		for _, f := range *seq {
			if f != nil {
				s.pending.Add(f)
			}
		}
		*seq = (*seq)[:0]
	}
	if fn != nil {
		s.pending.Add(fn)
	}
	post := !s.scheduled && s.pending.Length() > 0
	if post {
		s.scheduled = true
	}
	s.mu.Unlock()

	if post {
		s.backing.Execute(s.run)
	}
}

// run drains up to maxDrainPerRun functions, then re-posts itself if
// work remains.
func (s *Strand) run() {
	if s.drainPrefix() {
		// Bounded prefix exhausted with work remaining: yield the
		// backing executor and continue in a fresh run.
		s.backing.Execute(s.run)
	}
}

func (s *Strand) drainPrefix() bool {
	s.activeGoroutine.Store(goroutineID())
	defer s.activeGoroutine.Store(0)

	for i := 0; i < maxDrainPerRun; i++ {
		s.mu.Lock()
		if s.pending.Length() == 0 {
			s.scheduled = false
			s.mu.Unlock()
			return false
		}
		fn := s.pending.Remove().(func())
		s.mu.Unlock()

		invoke(fn)
	}
	return true
}

// IsRunningInCurrentThread reports whether the calling goroutine is
// currently executing inside this strand.
func (s *Strand) IsRunningInCurrentThread() bool {
	id := s.activeGoroutine.Load()
	return id != 0 && id == goroutineID()
}

// Drain runs all pending functions on the calling thread. It must not
// race the backing executor's dispatch of this strand.
func (s *Strand) Drain() {
	s.activeGoroutine.Store(goroutineID())
	defer s.activeGoroutine.Store(0)

	for {
		s.mu.Lock()
		if s.pending.Length() == 0 {
			s.scheduled = false
			s.mu.Unlock()
			return
		}
		fn := s.pending.Remove().(func())
		s.mu.Unlock()

		invoke(fn)
	}
}

// Clear drops all pending functions without running them.
func (s *Strand) Clear() {
	s.mu.Lock()
	s.pending = queue.New()
	s.mu.Unlock()
}

// Len returns the number of pending functions.
func (s *Strand) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length()
}

// invoke runs fn behind a failure boundary.
func invoke(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// goroutineID parses the current goroutine id from the runtime stack
// header ("goroutine N [...").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if idx := strings.IndexByte(header, ' '); idx > 0 {
		if id, err := strconv.ParseUint(header[:idx], 10, 64); err == nil {
			return id
		}
	}
	return 0
}
