// File: reactor/entry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry entry: per-handle interest state, event callback slots, the
// processing counter, and the detach state machine. An entry may be
// logically removed while an event callback is still executing on
// another thread; it is physically retired only when the processing
// counter returns to zero.

package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
)

// Detach states of an entry.
const (
	detachIdle int32 = iota
	detachScheduled
	detachDetached
)

// ShowOptions selects the trigger and re-arm policy for one show call.
// The zero value requests level-triggered, non-one-shot delivery.
type ShowOptions struct {
	Trigger api.Trigger
	OneShot bool
}

// Entry is the reactor's record for one attached handle.
type Entry struct {
	reactor *Reactor
	handle  api.Handle

	mu             sync.Mutex
	interest       api.Interest
	readableCB     api.EventCallback
	writableCB     api.EventCallback
	errorCB        api.EventCallback
	notificationCB api.NotificationCallback
	socket         api.Socket

	processing  atomic.Int32
	detachState atomic.Int32
	detachCB    api.DetachCallback
	detachOn    api.Executor
}

// Handle returns the OS descriptor this entry watches.
func (e *Entry) Handle() api.Handle { return e.handle }

// Interest returns the current interest value.
func (e *Entry) Interest() api.Interest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interest
}

// Socket returns the attached socket, or nil for callback-only entries.
func (e *Entry) Socket() api.Socket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socket
}

// validateShow rejects show options the polling device cannot provide.
func (e *Entry) validateShow(opts ShowOptions) error {
	dev := e.reactor.device
	if !dev.SupportsTrigger(opts.Trigger) {
		return api.NewErrorf(api.ErrCodeUnsupported, "trigger mode %s unavailable", opts.Trigger)
	}
	if opts.OneShot && !dev.SupportsOneShot() {
		return api.NewError(api.ErrCodeUnsupported, "one-shot mode unavailable")
	}
	return nil
}

// show applies one want-bit change plus the modal options and pushes
// the new interest to the polling device.
func (e *Entry) show(opts ShowOptions, apply func(*Entry)) (api.Interest, error) {
	if err := e.validateShow(opts); err != nil {
		return api.Interest{}, err
	}
	if e.detachState.Load() != detachIdle {
		return api.Interest{}, api.ErrAlreadyDetached
	}
	e.mu.Lock()
	apply(e)
	e.interest.Trigger = opts.Trigger
	e.interest.OneShot = opts.OneShot
	interest := e.interest
	e.mu.Unlock()

	if err := e.reactor.device.Update(e.handle, interest); err != nil {
		return interest, err
	}
	return interest, nil
}

// ShowReadable sets the readable want-bit and, when callback is
// non-nil, installs or replaces the readable callback.
func (e *Entry) ShowReadable(opts ShowOptions, callback api.EventCallback) (api.Interest, error) {
	return e.show(opts, func(e *Entry) {
		e.interest.Readable = true
		if callback != nil {
			e.readableCB = callback
		}
	})
}

// ShowWritable sets the writable want-bit and, when callback is
// non-nil, installs or replaces the writable callback.
func (e *Entry) ShowWritable(opts ShowOptions, callback api.EventCallback) (api.Interest, error) {
	return e.show(opts, func(e *Entry) {
		e.interest.Writable = true
		if callback != nil {
			e.writableCB = callback
		}
	})
}

// ShowError sets the error want-bit and, when callback is non-nil,
// installs or replaces the error callback.
func (e *Entry) ShowError(opts ShowOptions, callback api.EventCallback) (api.Interest, error) {
	return e.show(opts, func(e *Entry) {
		e.interest.Error = true
		if callback != nil {
			e.errorCB = callback
		}
	})
}

// ShowNotifications sets the notifications want-bit and, when callback
// is non-nil, installs or replaces the notification callback.
func (e *Entry) ShowNotifications(opts ShowOptions, callback api.NotificationCallback) (api.Interest, error) {
	return e.show(opts, func(e *Entry) {
		e.interest.Notifications = true
		if callback != nil {
			e.notificationCB = callback
		}
	})
}

// hide clears one want-bit and its callback, pushes the new interest,
// and detaches the handle when interest drops to nothing under the
// reactor's auto-detach policy.
func (e *Entry) hide(apply func(*Entry)) (api.Interest, error) {
	if e.detachState.Load() != detachIdle {
		return api.Interest{}, api.ErrAlreadyDetached
	}
	e.mu.Lock()
	apply(e)
	interest := e.interest
	e.mu.Unlock()

	if !interest.WantAny() && e.reactor.cfg.AutoDetach {
		return interest, e.reactor.DetachSocket(e.handle, nil, nil)
	}
	if err := e.reactor.device.Update(e.handle, interest); err != nil {
		return interest, err
	}
	return interest, nil
}

// HideReadable clears the readable want-bit and drops its callback.
func (e *Entry) HideReadable() (api.Interest, error) {
	return e.hide(func(e *Entry) {
		e.interest.Readable = false
		e.readableCB = nil
	})
}

// HideWritable clears the writable want-bit and drops its callback.
func (e *Entry) HideWritable() (api.Interest, error) {
	return e.hide(func(e *Entry) {
		e.interest.Writable = false
		e.writableCB = nil
	})
}

// HideError clears the error want-bit and drops its callback.
func (e *Entry) HideError() (api.Interest, error) {
	return e.hide(func(e *Entry) {
		e.interest.Error = false
		e.errorCB = nil
	})
}

// HideNotifications clears the notifications want-bit and drops its
// callback.
func (e *Entry) HideNotifications() (api.Interest, error) {
	return e.hide(func(e *Entry) {
		e.interest.Notifications = false
		e.notificationCB = nil
	})
}

// IncrementProcessCounter marks the entry as processing one event and
// returns the new counter value. It may briefly exceed one when
// several event kinds for the same handle land in one poll batch.
func (e *Entry) IncrementProcessCounter() int {
	return int(e.processing.Add(1))
}

// DecrementProcessCounter unmarks one in-flight event and returns the
// new counter value, finalizing a pending detach once it reaches zero.
func (e *Entry) DecrementProcessCounter() int {
	n := e.processing.Add(-1)
	if n == 0 && e.detachState.Load() == detachScheduled {
		e.reactor.finalizeDetach(e)
	}
	return int(n)
}

// beginProcessing increments the processing counter and re-checks the
// detach state. Returns false when the entry is already detaching, in
// which case the counter has been rolled back.
func (e *Entry) beginProcessing() bool {
	e.IncrementProcessCounter()
	if e.detachState.Load() != detachIdle {
		e.DecrementProcessCounter()
		return false
	}
	return true
}

// announce invokes cb behind the processing counter and a failure
// boundary. Returns whether an announcement was made.
func (e *Entry) announce(kind string, invoke func()) bool {
	if !e.beginProcessing() {
		return false
	}
	defer e.DecrementProcessCounter()
	defer func() {
		if r := recover(); r != nil {
			e.reactor.log.Warn("event callback panicked",
				zapHandle(e.handle), zapEventKind(kind), zapRecovered(r))
		}
	}()
	invoke()
	return true
}

// AnnounceReadable invokes the readable callback for event.
func (e *Entry) AnnounceReadable(event api.PollEvent) bool {
	e.mu.Lock()
	cb := e.readableCB
	e.mu.Unlock()
	if cb == nil {
		return false
	}
	return e.announce("readable", func() { cb(event) })
}

// AnnounceWritable invokes the writable callback for event.
func (e *Entry) AnnounceWritable(event api.PollEvent) bool {
	e.mu.Lock()
	cb := e.writableCB
	e.mu.Unlock()
	if cb == nil {
		return false
	}
	return e.announce("writable", func() { cb(event) })
}

// AnnounceError invokes the error callback for event.
func (e *Entry) AnnounceError(event api.PollEvent) bool {
	e.mu.Lock()
	cb := e.errorCB
	e.mu.Unlock()
	if cb == nil {
		return false
	}
	return e.announce("error", func() { cb(event) })
}

// AnnounceNotifications invokes the notification callback with batch.
func (e *Entry) AnnounceNotifications(batch []api.Notification) bool {
	e.mu.Lock()
	cb := e.notificationCB
	e.mu.Unlock()
	if cb == nil || len(batch) == 0 {
		return false
	}
	return e.announce("notifications", func() { cb(batch) })
}

// ProcessCounter returns the current processing counter value.
func (e *Entry) ProcessCounter() int { return int(e.processing.Load()) }

// clear drops all callbacks and the socket back-pointer. Only legal
// from detach finalization.
func (e *Entry) clear() {
	e.mu.Lock()
	e.readableCB = nil
	e.writableCB = nil
	e.errorCB = nil
	e.notificationCB = nil
	if e.socket != nil {
		e.socket.SetReactorContext(nil)
		e.socket = nil
	}
	e.mu.Unlock()
}
