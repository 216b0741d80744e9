// File: pool/notification.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring-backed notification queue shared between a socket and the
// reactor that drains it.

package pool

import (
	"github.com/momentics/hioload-reactor/api"
)

// DefaultNotificationCapacity bounds a socket notification queue when
// the caller does not size it explicitly.
const DefaultNotificationCapacity = 64

// NotificationRing implements api.NotificationQueue on top of Ring.
type NotificationRing struct {
	ring *Ring[api.Notification]
}

// NewNotificationRing allocates a queue with the given capacity; a
// capacity <= 0 selects DefaultNotificationCapacity.
func NewNotificationRing(capacity int) *NotificationRing {
	if capacity <= 0 {
		capacity = DefaultNotificationCapacity
	}
	return &NotificationRing{ring: NewRing[api.Notification](capacity)}
}

// Push enqueues a notification; returns false when full.
func (q *NotificationRing) Push(n api.Notification) bool {
	return q.ring.Push(n)
}

// Drain removes and returns all buffered notifications.
func (q *NotificationRing) Drain() []api.Notification {
	return q.ring.PopAll()
}

// Len returns the number of buffered notifications.
func (q *NotificationRing) Len() int {
	return q.ring.Len()
}
