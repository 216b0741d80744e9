// File: fake/fakedevice.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory polling device with manual event injection, used by tests
// to drive a reactor without touching the OS.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Device implements api.PollDevice over injected events.
type Device struct {
	mu         sync.Mutex
	registered map[api.Handle]api.Interest
	updates    []api.Interest
	closed     bool

	injected chan api.PollEvent
	wake     chan struct{}

	// Capability toggles, all enabled by default.
	EdgeOK          bool
	OneShotOK       bool
	NotificationsOK bool
}

var _ api.PollDevice = (*Device)(nil)

// NewDevice creates a fake device with every capability enabled.
func NewDevice() *Device {
	return &Device{
		registered:      make(map[api.Handle]api.Interest),
		injected:        make(chan api.PollEvent, 1024),
		wake:            make(chan struct{}, 1024),
		EdgeOK:          true,
		OneShotOK:       true,
		NotificationsOK: true,
	}
}

// Inject queues one event for a subsequent Dequeue.
func (d *Device) Inject(ev api.PollEvent) {
	d.injected <- ev
}

// Registered returns the interest last registered for h.
func (d *Device) Registered(h api.Handle) (api.Interest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	interest, ok := d.registered[h]
	return interest, ok
}

// Updates returns every interest value passed to Update, in order.
func (d *Device) Updates() []api.Interest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.Interest, len(d.updates))
	copy(out, d.updates)
	return out
}

// Add registers a handle.
func (d *Device) Add(h api.Handle, interest api.Interest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.registered[h]; dup {
		return api.NewErrorf(api.ErrCodeInvalid, "handle %d already registered", h)
	}
	d.registered[h] = interest
	return nil
}

// Update replaces the interest registered for a handle.
func (d *Device) Update(h api.Handle, interest api.Interest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.registered[h]; !ok {
		return api.NewErrorf(api.ErrCodeInvalid, "handle %d is not registered", h)
	}
	d.registered[h] = interest
	d.updates = append(d.updates, interest)
	return nil
}

// Remove deregisters a handle.
func (d *Device) Remove(h api.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.registered[h]; !ok {
		return api.NewErrorf(api.ErrCodeInvalid, "handle %d is not registered", h)
	}
	delete(d.registered, h)
	return nil
}

// Dequeue returns injected events, blocking up to timeout for the
// first one. A wake token produces a normal empty pass.
func (d *Device) Dequeue(events []api.PollEvent, timeout time.Duration) ([]api.PollEvent, error) {
	limit := cap(events)
	if limit <= len(events) {
		limit = len(events) + 1
	}

	var first api.PollEvent
	if timeout < 0 {
		select {
		case first = <-d.injected:
		case <-d.wake:
			return events, nil
		}
	} else {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case first = <-d.injected:
		case <-d.wake:
			return events, nil
		case <-t.C:
			return events, nil
		}
	}

	events = append(events, first)
	for len(events) < limit {
		select {
		case ev := <-d.injected:
			events = append(events, ev)
		default:
			return events, nil
		}
	}
	return events, nil
}

// InterruptOne wakes one blocked Dequeue.
func (d *Device) InterruptOne() error {
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// InterruptAll wakes every blocked Dequeue.
func (d *Device) InterruptAll() error {
	for i := 0; i < cap(d.wake); i++ {
		select {
		case d.wake <- struct{}{}:
		default:
			return nil
		}
	}
	return nil
}

// SupportsTrigger reports the configured trigger capability.
func (d *Device) SupportsTrigger(mode api.Trigger) bool {
	if mode == api.TriggerEdge {
		return d.EdgeOK
	}
	return true
}

// SupportsOneShot reports the configured one-shot capability.
func (d *Device) SupportsOneShot() bool { return d.OneShotOK }

// SupportsNotifications reports the configured notification capability.
func (d *Device) SupportsNotifications() bool { return d.NotificationsOK }

// Close marks the device closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
