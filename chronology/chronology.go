// File: chronology/chronology.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chronology: a deadline-ordered timer index plus a FIFO of deferred
// functions, guarded by a single mutex. Announce fires deferred
// functions before due timers; a recurring timer that re-inserts itself
// at the current instant is not revisited in the same pass.

package chronology

import (
	"container/heap"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-reactor/api"
)

// indexEntry is one scheduled timer instance in the deadline index.
// gen must match the timer's current generation for the entry to be
// live; stale entries are discarded lazily when they surface.
type indexEntry struct {
	deadlineUS int64
	seq        uint64
	gen        uint64
	t          *timer
}

// deadlineIndex is a min-heap ordered by (deadline, insertion sequence),
// giving FIFO stability among equal deadlines.
type deadlineIndex []indexEntry

func (d deadlineIndex) Len() int { return len(d) }

func (d deadlineIndex) Less(i, j int) bool {
	if d[i].deadlineUS != d[j].deadlineUS {
		return d[i].deadlineUS < d[j].deadlineUS
	}
	return d[i].seq < d[j].seq
}

func (d deadlineIndex) Swap(i, j int) { d[i], d[j] = d[j], d[i] }

func (d *deadlineIndex) Push(x any) { *d = append(*d, x.(indexEntry)) }

func (d *deadlineIndex) Pop() any {
	old := *d
	n := len(old)
	entry := old[n-1]
	old[n-1] = indexEntry{}
	*d = old[:n-1]
	return entry
}

// Chronology implements api.Chronology.
type Chronology struct {
	mu           sync.Mutex
	clock        func() time.Time
	index        deadlineIndex
	deferred     *queue.Queue
	live         map[*timer]struct{}
	numScheduled int
	seq          uint64
	parent       api.Chronology
	log          *zap.Logger

	// wake, when set, is invoked after work arrives so a poller blocked
	// on a stale timeout recomputes it. Set once before workers start.
	wake func()
}

var _ api.Chronology = (*Chronology)(nil)

// New creates a chronology. parent may be nil; a non-nil parent is
// consulted after the local state by Earliest, Announce,
// HasAnyScheduledOrDeferred, CloseAll and Clear. logger may be nil.
func New(parent api.Chronology, logger *zap.Logger) *Chronology {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chronology{
		clock:    time.Now,
		deferred: queue.New(),
		live:     make(map[*timer]struct{}),
		parent:   parent,
		log:      logger,
	}
}

// Parent returns the parent chronology, or nil.
func (c *Chronology) Parent() api.Chronology { return c.parent }

// SetWake installs the callback invoked when new work arrives. It must
// be set before any worker observes this chronology.
func (c *Chronology) SetWake(fn func()) { c.wake = fn }

// wakeUp nudges a poller blocked on a now-stale timeout.
func (c *Chronology) wakeUp() {
	if c.wake != nil {
		c.wake()
	}
}

// CreateTimer creates a timer delivering events to callback.
func (c *Chronology) CreateTimer(options api.TimerOptions, callback api.TimerCallback) api.Timer {
	t := &timer{chron: c, options: options, callback: callback}
	c.mu.Lock()
	c.live[t] = struct{}{}
	c.mu.Unlock()
	return t
}

// CreateTimerForSession creates a timer delivering events to a session.
func (c *Chronology) CreateTimerForSession(options api.TimerOptions, session api.TimerSession) api.Timer {
	var cb api.TimerCallback
	if session != nil {
		cb = func(t api.Timer, event api.TimerEvent) {
			session.ProcessTimerEvent(t, event)
		}
	}
	return c.CreateTimer(options, cb)
}

// pushLocked inserts a scheduled timer instance into the deadline
// index. Caller holds c.mu and has already set the timer state.
func (c *Chronology) pushLocked(t *timer, deadline time.Time) {
	c.seq++
	heap.Push(&c.index, indexEntry{
		deadlineUS: deadline.UnixMicro(),
		seq:        c.seq,
		gen:        t.gen,
		t:          t,
	})
	c.numScheduled++
}

// pruneLocked discards stale index heads left behind by reposition,
// cancel and close. Caller holds c.mu.
func (c *Chronology) pruneLocked() {
	for len(c.index) > 0 {
		head := c.index[0]
		if head.t.state == stateScheduled && head.gen == head.t.gen {
			return
		}
		heap.Pop(&c.index)
	}
}

// Execute enqueues fn into the deferred queue.
func (c *Chronology) Execute(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.deferred.Add(fn)
	c.mu.Unlock()
	c.wakeUp()
}

// MoveAndExecute splices a caller-owned sequence into the deferred
// queue then appends fn, atomically with respect to concurrent Execute.
func (c *Chronology) MoveAndExecute(seq *[]func(), fn func()) {
	c.mu.Lock()
	if seq != nil {
		for _, f := range *seq {
			if f != nil {
				c.deferred.Add(f)
			}
		}
		*seq = (*seq)[:0]
	}
	if fn != nil {
		c.deferred.Add(fn)
	}
	c.mu.Unlock()
	c.wakeUp()
}

// Earliest returns the earliest absolute deadline across this
// chronology and its parent. A nonempty deferred queue yields an
// immediate (zero) deadline.
func (c *Chronology) Earliest() (time.Time, bool) {
	c.mu.Lock()
	if c.deferred.Length() > 0 {
		c.mu.Unlock()
		return time.Time{}, true
	}
	c.pruneLocked()
	var local time.Time
	haveLocal := len(c.index) > 0
	if haveLocal {
		local = time.UnixMicro(c.index[0].deadlineUS)
	}
	c.mu.Unlock()

	if c.parent != nil {
		if remote, ok := c.parent.Earliest(); ok {
			if !haveLocal || remote.Before(local) {
				return remote, true
			}
		}
	}
	return local, haveLocal
}

// HasAnyScheduledOrDeferred reports whether any work is pending here or
// in the parent.
func (c *Chronology) HasAnyScheduledOrDeferred() bool {
	c.mu.Lock()
	pending := c.numScheduled > 0 || c.deferred.Length() > 0
	c.mu.Unlock()
	if pending {
		return true
	}
	return c.parent != nil && c.parent.HasAnyScheduledOrDeferred()
}

// NumScheduled returns the number of scheduled timers.
func (c *Chronology) NumScheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numScheduled
}

// NumDeferred returns the number of queued deferred functions.
func (c *Chronology) NumDeferred() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred.Length()
}

// dueTimer is one timer instance collected for firing.
type dueTimer struct {
	t        *timer
	deadline time.Time
	now      time.Time
	oneShot  bool
}

// Announce fires all due work, or exactly one unit when single is set:
// one deferred function if any is queued, else one due timer. Deferred
// functions always fire before timers within a pass. When single is set
// and no local work fired, the parent is announced for a single unit;
// a full pass always announces a parent that has pending work.
func (c *Chronology) Announce(single bool) {
	c.announce(single, 0)
}

// AnnounceUpTo fires all due deferred functions and at most maxTimers
// due timers. A maxTimers <= 0 means unbounded.
func (c *Chronology) AnnounceUpTo(maxTimers int) {
	c.announce(false, maxTimers)
}

func (c *Chronology) announce(single bool, maxTimers int) {
	var functorsDue []func()
	var timersDue []dueTimer
	done := false

	c.mu.Lock()

	if c.deferred.Length() > 0 {
		if single {
			functorsDue = append(functorsDue, c.deferred.Remove().(func()))
			done = true
		} else {
			n := c.deferred.Length()
			functorsDue = make([]func(), 0, n)
			for i := 0; i < n; i++ {
				functorsDue = append(functorsDue, c.deferred.Remove().(func()))
			}
		}
	}

	if !done && len(c.index) > 0 {
		now := c.clock()
		nowUS := now.UnixMicro()

		// Entries inserted from this point on are re-insertions made by
		// this very pass; stopping at them prevents a recurring timer
		// with next deadline == now from firing twice.
		seqBarrier := c.seq

		for {
			c.pruneLocked()
			if len(c.index) == 0 {
				break
			}
			head := c.index[0]
			if head.deadlineUS > nowUS {
				break
			}
			if head.seq > seqBarrier {
				break
			}

			heap.Pop(&c.index)
			c.numScheduled--

			t := head.t
			deadline := time.UnixMicro(head.deadlineUS)

			if t.period > 0 {
				next := deadline.Add(t.period)
				if next.Before(now) {
					next = now
				}
				t.deadline = next
				t.gen++
				c.pushLocked(t, next)
			} else {
				t.state = stateWaiting
				t.deadline = time.Time{}
				t.gen++
			}

			timersDue = append(timersDue, dueTimer{
				t:        t,
				deadline: deadline,
				now:      now,
				oneShot:  t.options.OneShot && t.period == 0,
			})

			if single {
				done = true
				break
			}
			if maxTimers > 0 && len(timersDue) >= maxTimers {
				break
			}
		}
	}

	c.mu.Unlock()

	for _, fn := range functorsDue {
		c.runDeferred(fn)
	}

	for _, due := range timersDue {
		// A close that raced ahead of this firing suppresses it.
		c.mu.Lock()
		closed := due.t.state == stateClosed
		c.mu.Unlock()
		if closed {
			continue
		}
		if due.t.options.WantDeadline {
			event := api.TimerEvent{
				Kind:     api.TimerEventDeadline,
				Deadline: due.deadline,
			}
			if due.t.options.Drift {
				if drift := due.now.Sub(due.deadline); drift > 0 {
					event.Drift = drift
				}
			}
			due.t.arrive(event)
		}
		if due.oneShot {
			_ = due.t.Close()
		}
	}

	if !done && c.parent != nil && c.parent.HasAnyScheduledOrDeferred() {
		c.parent.Announce(true)
	}
}

// runDeferred invokes one deferred function behind a failure boundary.
func (c *Chronology) runDeferred(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("deferred function panicked", zapRecovered(r))
		}
	}()
	fn()
}

// Drain runs deferred functions until the queue is empty, firing no
// timers. Functions enqueued by draining functions are drained too.
func (c *Chronology) Drain() {
	for {
		c.mu.Lock()
		if c.deferred.Length() == 0 {
			c.mu.Unlock()
			return
		}
		fn := c.deferred.Remove().(func())
		c.mu.Unlock()
		c.runDeferred(fn)
	}
}

// CloseAll closes every registered timer, then the parent's.
func (c *Chronology) CloseAll() {
	c.mu.Lock()
	timers := make([]*timer, 0, len(c.live))
	for t := range c.live {
		timers = append(timers, t)
	}
	c.mu.Unlock()

	for _, t := range timers {
		_ = t.Close()
	}

	if c.parent != nil {
		c.parent.CloseAll()
	}
}

// Clear drops all scheduled timers and deferred functions without
// raising any event, then clears the parent.
func (c *Chronology) Clear() {
	c.mu.Lock()
	for t := range c.live {
		if t.state == stateScheduled {
			t.state = stateWaiting
			t.deadline = time.Time{}
			t.gen++
		}
	}
	c.index = c.index[:0]
	c.numScheduled = 0
	c.deferred = queue.New()
	c.mu.Unlock()

	if c.parent != nil {
		c.parent.Clear()
	}
}

func zapKind(k api.TimerEventKind) zap.Field { return zap.String("event", k.String()) }

func zapRecovered(r any) zap.Field { return zap.Any("panic", r) }
