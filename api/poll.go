// File: api/poll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PollDevice abstracts the OS readiness-notification mechanism (epoll,
// kqueue, IOCP, poll, select) behind a capability-queried contract so
// that no platform knob leaks into the reactor.

package api

import "time"

// PollEvent is one readiness notification dequeued from a PollDevice.
type PollEvent struct {
	// Handle is the descriptor the event refers to.
	Handle Handle
	// Mask holds the event kind bits that are ready.
	Mask EventMask
	// Errno carries the per-handle OS error code when EventError is set;
	// zero means the error flag is a notifications-available indicator.
	Errno int
}

// IsError reports whether the event carries the error kind.
func (e PollEvent) IsError() bool { return e.Mask&EventError != 0 }

// IsFatalError reports whether the event carries the error kind with a
// nonzero OS error code.
func (e PollEvent) IsFatalError() bool { return e.IsError() && e.Errno != 0 }

// IsReadable reports whether the event carries the readable kind.
func (e PollEvent) IsReadable() bool { return e.Mask&EventReadable != 0 }

// IsWritable reports whether the event carries the writable kind.
func (e PollEvent) IsWritable() bool { return e.Mask&EventWritable != 0 }

// IsHangup reports whether the peer hung up.
func (e PollEvent) IsHangup() bool { return e.Mask&EventHangup != 0 }

// PollDevice is the OS polling mechanism a Reactor drives. One device
// belongs to exactly one Reactor; Dequeue may be called by at most one
// thread at a time unless the implementation documents otherwise.
type PollDevice interface {
	// Add registers the handle with the device using the given interest.
	Add(handle Handle, interest Interest) error

	// Update replaces the interest registered for the handle.
	Update(handle Handle, interest Interest) error

	// Remove deregisters the handle from the device.
	Remove(handle Handle) error

	// Dequeue blocks up to timeout for readiness events and appends up
	// to cap(events)-len(events) of them into events. A timeout < 0
	// blocks indefinitely. Returns the filled slice; an empty result
	// with a nil error is a normal timed-out pass.
	Dequeue(events []PollEvent, timeout time.Duration) ([]PollEvent, error)

	// InterruptOne wakes one thread blocked in Dequeue.
	InterruptOne() error

	// InterruptAll wakes every thread blocked in Dequeue.
	InterruptAll() error

	// SupportsTrigger reports whether the device can deliver events in
	// the given trigger mode.
	SupportsTrigger(mode Trigger) bool

	// SupportsOneShot reports whether the device can auto-disarm
	// interest on each delivery.
	SupportsOneShot() bool

	// SupportsNotifications reports whether the device distinguishes a
	// notifications-available condition from a socket error.
	SupportsNotifications() bool

	// Close releases the device.
	Close() error
}
