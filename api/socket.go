// File: api/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket abstraction consumed by the reactor. The core never owns the
// descriptor; it drives readiness for whoever does.

package api

// NotificationKind labels one entry of a socket notification queue.
type NotificationKind int

const (
	// NotificationSendCompleted reports a completed zero-copy send.
	NotificationSendCompleted NotificationKind = iota
	// NotificationTimestamp reports a transmit timestamp record.
	NotificationTimestamp
)

// Notification is one entry drained from a socket's notification queue.
type Notification struct {
	Kind NotificationKind
	// ID correlates the notification with the operation that caused it.
	ID uint64
	// Errno is the OS error associated with the notification, if any.
	Errno int
}

// NotificationQueue buffers notifications between the OS and the
// notification callback. Implementations must be safe for one producer
// and one consumer running concurrently.
type NotificationQueue interface {
	// Push enqueues a notification; returns false when full.
	Push(n Notification) bool
	// Drain removes and returns all buffered notifications.
	Drain() []Notification
	// Len returns the number of buffered notifications.
	Len() int
}

// Socket is the contract the reactor requires of an attachable socket.
type Socket interface {
	// Handle returns the OS descriptor. The result must be stable for
	// the entire time the socket is attached.
	Handle() Handle

	// ReactorContext returns the opaque value previously stored with
	// SetReactorContext, or nil. The reactor stores its registry entry
	// here; sockets must treat the value as opaque.
	ReactorContext() any

	// SetReactorContext stores an opaque value on behalf of the reactor.
	SetReactorContext(ctx any)

	// NotificationQueue returns the socket's notification queue, or nil
	// when the socket does not produce notifications.
	NotificationQueue() NotificationQueue
}

// EventCallback consumes one readiness announcement for a handle.
type EventCallback func(event PollEvent)

// NotificationCallback consumes a batch of drained notifications.
type NotificationCallback func(batch []Notification)

// DetachCallback observes the completion of a detach. After it has been
// invoked no event callback for the entry will ever run again.
type DetachCallback func()
