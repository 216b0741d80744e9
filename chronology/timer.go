// File: chronology/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer state machine. All state is guarded by the owning chronology's
// mutex; events are always raised outside that mutex.

package chronology

import (
	"time"

	"github.com/momentics/hioload-reactor/api"
)

type timerState int

const (
	stateWaiting timerState = iota
	stateScheduled
	stateClosed
)

// timer implements api.Timer. A scheduled timer appears exactly once in
// the chronology's deadline index; repositioning and cancellation
// invalidate the old index entry by bumping gen.
type timer struct {
	chron    *Chronology
	options  api.TimerOptions
	callback api.TimerCallback

	// Guarded by chron.mu.
	state    timerState
	deadline time.Time
	period   time.Duration
	gen      uint64
}

var _ api.Timer = (*timer)(nil)

// Schedule arms or repositions the timer.
func (t *timer) Schedule(deadline time.Time, period time.Duration) error {
	c := t.chron

	c.mu.Lock()
	if t.state == stateClosed {
		c.mu.Unlock()
		return api.ErrTimerClosed
	}
	if t.state == stateScheduled {
		// Reposition: the previous index entry turns stale.
		c.numScheduled--
	}
	t.state = stateScheduled
	t.deadline = deadline
	t.period = period
	t.gen++
	c.pushLocked(t, deadline)
	c.mu.Unlock()

	c.wakeUp()
	return nil
}

// Cancel disarms a scheduled timer. Canceling a waiting timer is a
// no-op; canceling a closed timer returns api.ErrTimerClosed.
func (t *timer) Cancel() error {
	c := t.chron

	c.mu.Lock()
	if t.state == stateClosed {
		c.mu.Unlock()
		return api.ErrTimerClosed
	}
	if t.state != stateScheduled {
		c.mu.Unlock()
		return nil
	}
	t.state = stateWaiting
	t.deadline = time.Time{}
	t.gen++
	c.numScheduled--
	announceCanceled := t.options.WantCanceled
	c.mu.Unlock()

	if announceCanceled {
		t.arrive(api.TimerEvent{Kind: api.TimerEventCanceled})
	}
	return nil
}

// Close transitions the timer to its terminal state. A scheduled timer
// raises canceled then closed; a waiting timer raises only closed.
func (t *timer) Close() error {
	c := t.chron

	c.mu.Lock()
	if t.state == stateClosed {
		c.mu.Unlock()
		return api.ErrTimerClosed
	}
	wasScheduled := t.state == stateScheduled
	if wasScheduled {
		c.numScheduled--
	}
	t.state = stateClosed
	t.deadline = time.Time{}
	t.gen++
	delete(c.live, t)
	announceCanceled := wasScheduled && t.options.WantCanceled
	announceClosed := t.options.WantClosed
	c.mu.Unlock()

	if announceCanceled {
		t.arrive(api.TimerEvent{Kind: api.TimerEventCanceled})
	}
	if announceClosed {
		t.arrive(api.TimerEvent{Kind: api.TimerEventClosed})
	}
	return nil
}

// Deadline returns the scheduled absolute deadline, if any.
func (t *timer) Deadline() (time.Time, bool) {
	c := t.chron
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.state != stateScheduled {
		return time.Time{}, false
	}
	return t.deadline, true
}

// Period returns the recurrence period; zero means non-recurring.
func (t *timer) Period() time.Duration {
	c := t.chron
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.period
}

// UserHandle returns the opaque handle from the timer options.
func (t *timer) UserHandle() any { return t.options.Handle }

// UserID returns the opaque id from the timer options.
func (t *timer) UserID() int64 { return t.options.ID }

// arrive delivers one event to the callback behind a failure boundary
// so that a panicking user callback cannot take down the event loop.
func (t *timer) arrive(event api.TimerEvent) {
	if t.callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.chron.log.Warn("timer callback panicked",
				zapKind(event.Kind), zapRecovered(r))
		}
	}()
	t.callback(t, event)
}
