//go:build linux
// +build linux

// File: transport/stream_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Nonblocking TCP stream and listener sockets.

package transport

import (
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// StreamSocket is a nonblocking TCP connection attachable to a reactor.
type StreamSocket struct {
	*baseSocket
}

// NewStreamSocket opens a stream socket; the sample address decides
// IPv4 vs IPv6.
func NewStreamSocket(sample netip.AddrPort) (*StreamSocket, error) {
	base, err := newSocket(familyOf(sample), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(base.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = base.Close()
		return nil, osError("setsockopt TCP_NODELAY", err)
	}
	return &StreamSocket{baseSocket: base}, nil
}

// Connect starts a nonblocking connect. An in-progress connect is not
// an error; completion surfaces as writability on the reactor.
func (s *StreamSocket) Connect(addr netip.AddrPort) error {
	err := unix.Connect(s.fd, sockaddrOf(addr))
	if err == unix.EINPROGRESS {
		return nil
	}
	if err != nil {
		return osError("connect", err)
	}
	return nil
}

// ConnectError reports the outcome of a nonblocking connect once the
// socket turns writable; nil means the connection is established.
func (s *StreamSocket) ConnectError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return osError("getsockopt SO_ERROR", err)
	}
	if errno != 0 {
		return api.NewOSError("connect", errno)
	}
	return nil
}

// LocalAddr reports the bound local address.
func (s *StreamSocket) LocalAddr() (netip.AddrPort, error) {
	return localAddr(s.fd)
}

// Send writes as much of payload as the socket accepts.
func (s *StreamSocket) Send(payload []byte) (int, error) {
	n, err := unix.Write(s.fd, payload)
	if err != nil {
		return 0, osError("write", err)
	}
	return n, nil
}

// Recv reads available bytes into buf. A zero count with a nil error
// means the peer closed the connection.
func (s *StreamSocket) Recv(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return 0, osError("read", err)
	}
	return n, nil
}

// ListenerSocket is a nonblocking TCP listener attachable to a reactor.
type ListenerSocket struct {
	*baseSocket
}

// NewListenerSocket opens a listener socket; the sample address decides
// IPv4 vs IPv6.
func NewListenerSocket(sample netip.AddrPort) (*ListenerSocket, error) {
	base, err := newSocket(familyOf(sample), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	return &ListenerSocket{baseSocket: base}, nil
}

// Listen binds addr and starts listening.
func (l *ListenerSocket) Listen(addr netip.AddrPort, backlog int) error {
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.SetsockoptInt(l.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return osError("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(l.fd, sockaddrOf(addr)); err != nil {
		return osError("bind", err)
	}
	if err := unix.Listen(l.fd, backlog); err != nil {
		return osError("listen", err)
	}
	return nil
}

// LocalAddr reports the bound listen address.
func (l *ListenerSocket) LocalAddr() (netip.AddrPort, error) {
	return localAddr(l.fd)
}

// Accept takes one pending connection, returning it as a nonblocking
// stream socket along with the peer address.
func (l *ListenerSocket) Accept() (*StreamSocket, netip.AddrPort, error) {
	fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, netip.AddrPort{}, osError("accept4", err)
	}
	conn := &StreamSocket{baseSocket: &baseSocket{fd: fd}}
	return conn, addrPortOf(sa), nil
}
