// File: api/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer and chronology contracts: one-shot and recurring timers with
// optional cancellation and close events, drift reporting, and deferred
// function execution.

package api

import "time"

// TimerEventKind discriminates the events a timer can raise.
type TimerEventKind int

const (
	// TimerEventDeadline reports that the scheduled deadline arrived.
	TimerEventDeadline TimerEventKind = iota
	// TimerEventCanceled reports that a scheduled timer was canceled.
	TimerEventCanceled
	// TimerEventClosed reports the terminal close of a timer. Raised at
	// most once per timer.
	TimerEventClosed
)

// String returns the event kind name used in logs.
func (k TimerEventKind) String() string {
	switch k {
	case TimerEventDeadline:
		return "deadline"
	case TimerEventCanceled:
		return "canceled"
	default:
		return "closed"
	}
}

// TimerEvent is delivered to a timer callback or session.
type TimerEvent struct {
	Kind TimerEventKind
	// Deadline is the absolute deadline that fired; zero for canceled
	// and closed events.
	Deadline time.Time
	// Drift is max(0, actualFireTime-scheduledDeadline), populated only
	// when the timer was created with Drift enabled.
	Drift time.Duration
}

// TimerOptions configures a timer at creation.
type TimerOptions struct {
	// OneShot closes a non-recurring timer automatically after its
	// deadline fires. A recurring timer (nonzero period) is not closed.
	OneShot bool
	// Drift requests drift measurement on deadline events.
	Drift bool
	// WantDeadline, WantCanceled and WantClosed select the event kinds
	// delivered to the callback or session.
	WantDeadline bool
	WantCanceled bool
	WantClosed   bool
	// Handle and ID are opaque user values echoed by Timer accessors.
	Handle any
	ID     int64
}

// DefaultTimerOptions wants only deadline events.
func DefaultTimerOptions() TimerOptions {
	return TimerOptions{WantDeadline: true}
}

// TimerCallback consumes timer events.
type TimerCallback func(t Timer, event TimerEvent)

// TimerSession is the stateful alternative to a TimerCallback.
type TimerSession interface {
	ProcessTimerEvent(t Timer, event TimerEvent)
}

// Timer is a handle on one timer owned by a chronology.
type Timer interface {
	// Schedule arms the timer for the absolute deadline. A zero period
	// means non-recurring; otherwise the timer re-arms itself at
	// max(now, deadline+period) after each firing. Scheduling an
	// already-scheduled timer repositions it.
	Schedule(deadline time.Time, period time.Duration) error

	// Cancel disarms a scheduled timer, raising a canceled event when
	// the option is set. Canceling a waiting timer is a no-op; canceling
	// a closed timer returns ErrTimerClosed.
	Cancel() error

	// Close disarms the timer if needed and transitions it to its
	// terminal state, raising at most one closed event. Closing a
	// closed timer returns ErrTimerClosed.
	Close() error

	// Deadline returns the currently scheduled absolute deadline and
	// whether one is set.
	Deadline() (time.Time, bool)

	// Period returns the recurrence period; zero means non-recurring.
	Period() time.Duration

	// UserHandle returns the opaque handle from TimerOptions.
	UserHandle() any

	// UserID returns the opaque id from TimerOptions.
	UserID() int64
}

// Chronology is the timer and deferred-execution engine.
type Chronology interface {
	// CreateTimer creates a timer delivering events to callback.
	CreateTimer(options TimerOptions, callback TimerCallback) Timer

	// CreateTimerForSession creates a timer delivering events to a
	// session.
	CreateTimerForSession(options TimerOptions, session TimerSession) Timer

	// Execute enqueues fn into the deferred queue. fn runs on a worker
	// thread during a subsequent announce pass.
	Execute(fn func())

	// MoveAndExecute splices a caller-owned sequence into the deferred
	// queue then appends fn, atomically with respect to concurrent
	// Execute calls. The sequence is emptied.
	MoveAndExecute(seq *[]func(), fn func())

	// Earliest returns the earliest absolute deadline; ok is false when
	// no work is pending. An immediate (zero) deadline is returned when
	// the deferred queue is nonempty.
	Earliest() (deadline time.Time, ok bool)

	// Announce fires all due work: deferred functions first, then
	// timers whose deadline has passed. With single set, at most one
	// unit of work fires.
	Announce(single bool)

	// HasAnyScheduledOrDeferred reports whether any timer is scheduled
	// or any deferred function is queued.
	HasAnyScheduledOrDeferred() bool

	// NumScheduled returns the number of scheduled timers.
	NumScheduled() int

	// NumDeferred returns the number of queued deferred functions.
	NumDeferred() int

	// Drain runs deferred functions until the queue is empty, firing no
	// timers.
	Drain()

	// CloseAll closes every registered timer.
	CloseAll()

	// Clear drops all timers and deferred functions without firing any
	// event.
	Clear()
}
