//go:build linux
// +build linux

// File: reactor/device_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) polling device. Wakeups use an eventfd registered
// level-triggered so that every blocked waiter drains out of
// epoll_wait until the counter is read.

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// epollDevice implements api.PollDevice.
type epollDevice struct {
	epfd   int
	wakefd int

	mu     sync.Mutex
	closed bool
}

// NewDevice constructs the platform polling device, epoll on Linux.
func NewDevice() (api.PollDevice, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.NewOSError("epoll_create1", errnoOf(err))
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, api.NewOSError("eventfd", errnoOf(err))
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, api.NewOSError("epoll_ctl wakefd", errnoOf(err))
	}
	return &epollDevice{epfd: epfd, wakefd: wakefd}, nil
}

// epollMask converts an interest value to epoll event bits.
func epollMask(interest api.Interest) uint32 {
	var mask uint32
	if interest.Readable {
		mask |= unix.EPOLLIN
	}
	if interest.Writable {
		mask |= unix.EPOLLOUT
	}
	if interest.Notifications {
		mask |= unix.EPOLLPRI
	}
	// EPOLLERR and EPOLLHUP are always reported by the kernel.
	if interest.Trigger == api.TriggerEdge {
		mask |= unix.EPOLLET
	}
	if interest.OneShot {
		mask |= unix.EPOLLONESHOT
	}
	return mask
}

// errnoOf extracts the raw errno from an x/sys error.
func errnoOf(err error) int {
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return int(unix.EIO)
}

func ctlError(op string, err error) error {
	if err == unix.ENOMEM || err == unix.ENOSPC {
		return api.NewErrorf(api.ErrCodeLimit, "%s: %v", op, err)
	}
	return api.NewOSError(op, errnoOf(err))
}

// Add registers a handle with the epoll instance.
func (d *epollDevice) Add(h api.Handle, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(h)}
	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_ADD, int(h), &ev); err != nil {
		return ctlError("epoll_ctl add", err)
	}
	return nil
}

// Update replaces the interest registered for a handle.
func (d *epollDevice) Update(h api.Handle, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(h)}
	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_MOD, int(h), &ev); err != nil {
		return ctlError("epoll_ctl mod", err)
	}
	return nil
}

// Remove deregisters a handle.
func (d *epollDevice) Remove(h api.Handle) error {
	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, int(h), nil); err != nil {
		return ctlError("epoll_ctl del", err)
	}
	return nil
}

// Dequeue waits for readiness events, translating epoll bits to the
// portable event mask. The wake eventfd is consumed internally and
// produces a normal empty pass.
func (d *epollDevice) Dequeue(events []api.PollEvent, timeout time.Duration) ([]api.PollEvent, error) {
	capacity := cap(events) - len(events)
	if capacity <= 0 {
		capacity = 1
	}
	raw := make([]unix.EpollEvent, capacity)

	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.EpollWait(d.epfd, raw, msec)
	if err != nil {
		if err == unix.EINTR {
			return events, nil
		}
		return events, api.NewOSError("epoll_wait", errnoOf(err))
	}

	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == d.wakefd {
			var buf [8]byte
			_, _ = unix.Read(d.wakefd, buf[:])
			continue
		}

		var ev api.PollEvent
		ev.Handle = api.Handle(fd)
		bits := raw[i].Events

		if bits&unix.EPOLLIN != 0 {
			ev.Mask |= api.EventReadable
		}
		if bits&unix.EPOLLOUT != 0 {
			ev.Mask |= api.EventWritable
		}
		if bits&unix.EPOLLPRI != 0 {
			// Exceptional condition without an error code: the reactor
			// treats it as a notifications-available indicator.
			ev.Mask |= api.EventError
		}
		if bits&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			// Hangup surfaces as readability so the owner observes EOF.
			ev.Mask |= api.EventReadable | api.EventHangup
		}
		if bits&unix.EPOLLERR != 0 {
			ev.Mask |= api.EventError
			ev.Errno = socketErrno(fd)
		}
		events = append(events, ev)
	}
	return events, nil
}

// socketErrno retrieves and clears the pending socket error.
func socketErrno(fd int) int {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return int(unix.EIO)
	}
	return errno
}

// InterruptOne wakes at least one thread blocked in Dequeue.
func (d *epollDevice) InterruptOne() error {
	var one = [8]byte{0: 1}
	if _, err := unix.Write(d.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return api.NewOSError("eventfd write", errnoOf(err))
	}
	return nil
}

// InterruptAll wakes every thread blocked in Dequeue. The eventfd is
// level-triggered, so each waiter keeps waking until the counter is
// drained.
func (d *epollDevice) InterruptAll() error {
	return d.InterruptOne()
}

// SupportsTrigger reports trigger capability; epoll provides both.
func (d *epollDevice) SupportsTrigger(api.Trigger) bool { return true }

// SupportsOneShot reports one-shot capability; epoll provides it.
func (d *epollDevice) SupportsOneShot() bool { return true }

// SupportsNotifications reports notification capability via EPOLLPRI.
func (d *epollDevice) SupportsNotifications() bool { return true }

// Close releases the epoll instance and the wake eventfd.
func (d *epollDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	unix.Close(d.wakefd)
	return unix.Close(d.epfd)
}
