// File: api/interest.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interest describes the subset of readiness events the reactor watches
// for one handle, plus the trigger mode and re-arm policy.

package api

// Handle identifies one OS-level socket descriptor. It is unique within
// a process for the lifetime of the underlying descriptor.
type Handle = uintptr

// InvalidHandle is the sentinel for "no handle".
const InvalidHandle = ^Handle(0)

// Trigger selects how the polling device reports readiness.
type Trigger int

const (
	// TriggerLevel reports readiness for as long as it holds.
	TriggerLevel Trigger = iota
	// TriggerEdge reports readiness only on transitions.
	TriggerEdge
)

// String returns the lowercase name of the trigger mode.
func (t Trigger) String() string {
	if t == TriggerEdge {
		return "edge"
	}
	return "level"
}

// Interest is a pure value: a bit per event kind plus two modal flags.
// The zero value wants nothing, level-triggered, not one-shot.
type Interest struct {
	Readable      bool
	Writable      bool
	Error         bool
	Notifications bool
	Trigger       Trigger
	OneShot       bool
}

// WithReadable returns a copy with the readable want-bit set or cleared.
func (i Interest) WithReadable(want bool) Interest {
	i.Readable = want
	return i
}

// WithWritable returns a copy with the writable want-bit set or cleared.
func (i Interest) WithWritable(want bool) Interest {
	i.Writable = want
	return i
}

// WithError returns a copy with the error want-bit set or cleared.
func (i Interest) WithError(want bool) Interest {
	i.Error = want
	return i
}

// WithNotifications returns a copy with the notifications want-bit set
// or cleared.
func (i Interest) WithNotifications(want bool) Interest {
	i.Notifications = want
	return i
}

// WithTrigger returns a copy using the given trigger mode.
func (i Interest) WithTrigger(t Trigger) Interest {
	i.Trigger = t
	return i
}

// WithOneShot returns a copy using the given one-shot policy.
func (i Interest) WithOneShot(oneShot bool) Interest {
	i.OneShot = oneShot
	return i
}

// WantAnyReadWrite reports whether the readable or writable bit is set.
func (i Interest) WantAnyReadWrite() bool {
	return i.Readable || i.Writable
}

// WantAny reports whether any want-bit is set.
func (i Interest) WantAny() bool {
	return i.Readable || i.Writable || i.Error || i.Notifications
}

// EventMask is the device-facing union of want-bits.
type EventMask uint32

// Event kind bits reported by a polling device and requested through
// Interest.EffectiveMask.
const (
	EventReadable EventMask = 1 << iota
	EventWritable
	EventError
	EventNotifications
	EventHangup
)

// EffectiveMask returns the union of want-bits the polling device is
// asked to watch. Toggling any bit is idempotent with respect to the
// resulting mask.
func (i Interest) EffectiveMask() EventMask {
	var m EventMask
	if i.Readable {
		m |= EventReadable
	}
	if i.Writable {
		m |= EventWritable
	}
	if i.Error {
		m |= EventError
	}
	if i.Notifications {
		m |= EventNotifications
	}
	return m
}
