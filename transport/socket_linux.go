//go:build linux
// +build linux

// File: transport/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared descriptor plumbing for the Linux socket types.

package transport

import (
	"net/netip"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/pool"
)

// baseSocket carries the descriptor, the reactor-context slot and the
// notification queue common to every socket type.
type baseSocket struct {
	fd int

	mu     sync.Mutex
	ctx    any
	closed bool

	notifications *pool.NotificationRing
}

// Handle returns the OS descriptor.
func (s *baseSocket) Handle() api.Handle { return api.Handle(s.fd) }

// ReactorContext returns the opaque reactor slot.
func (s *baseSocket) ReactorContext() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// SetReactorContext stores the opaque reactor slot.
func (s *baseSocket) SetReactorContext(ctx any) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

// NotificationQueue returns the socket's notification queue.
func (s *baseSocket) NotificationQueue() api.NotificationQueue {
	if s.notifications == nil {
		return nil
	}
	return s.notifications
}

// Close releases the descriptor. Safe to call twice.
func (s *baseSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return osError("close", err)
	}
	return nil
}

// newSocket opens a nonblocking, close-on-exec socket.
func newSocket(family, sotype, proto int) (*baseSocket, error) {
	fd, err := unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, osError("socket", err)
	}
	return &baseSocket{
		fd:            fd,
		notifications: pool.NewNotificationRing(0),
	}, nil
}

// osError wraps an errno-bearing failure.
func osError(op string, err error) error {
	if errno, ok := err.(unix.Errno); ok {
		if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
			return api.NewError(api.ErrCodeWouldBlock, op)
		}
		return api.NewOSError(op, int(errno))
	}
	return api.NewError(api.ErrCodeInternal, op).WithCause(err)
}

// familyOf picks the address family for addr.
func familyOf(addr netip.AddrPort) int {
	if addr.Addr().Is4() || addr.Addr().Is4In6() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// sockaddrOf converts addr to the matching unix.Sockaddr.
func sockaddrOf(addr netip.AddrPort) unix.Sockaddr {
	if addr.Addr().Is4() || addr.Addr().Is4In6() {
		sa := &unix.SockaddrInet4{Port: int(addr.Port())}
		a4 := addr.Addr().As4()
		copy(sa.Addr[:], a4[:])
		return sa
	}
	sa := &unix.SockaddrInet6{Port: int(addr.Port())}
	a16 := addr.Addr().As16()
	copy(sa.Addr[:], a16[:])
	return sa
}

// addrPortOf converts a unix.Sockaddr back to netip.AddrPort.
func addrPortOf(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr), uint16(v.Port))
	default:
		return netip.AddrPort{}
	}
}

// localAddr reports the bound local address of fd.
func localAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, osError("getsockname", err)
	}
	return addrPortOf(sa), nil
}
