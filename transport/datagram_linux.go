//go:build linux
// +build linux

// File: transport/datagram_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Nonblocking UDP datagram socket.

package transport

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

// DatagramSocket is a nonblocking UDP socket attachable to a reactor.
type DatagramSocket struct {
	*baseSocket
}

// NewDatagramSocket opens a datagram socket for the given family
// sample address (its family decides IPv4 vs IPv6).
func NewDatagramSocket(sample netip.AddrPort) (*DatagramSocket, error) {
	base, err := newSocket(familyOf(sample), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	return &DatagramSocket{baseSocket: base}, nil
}

// Bind binds the local address.
func (s *DatagramSocket) Bind(addr netip.AddrPort) error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return osError("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(s.fd, sockaddrOf(addr)); err != nil {
		return osError("bind", err)
	}
	return nil
}

// Connect fixes the default peer address.
func (s *DatagramSocket) Connect(addr netip.AddrPort) error {
	if err := unix.Connect(s.fd, sockaddrOf(addr)); err != nil {
		return osError("connect", err)
	}
	return nil
}

// LocalAddr reports the bound local address.
func (s *DatagramSocket) LocalAddr() (netip.AddrPort, error) {
	return localAddr(s.fd)
}

// SendTo transmits one datagram to addr.
func (s *DatagramSocket) SendTo(payload []byte, addr netip.AddrPort) error {
	if err := unix.Sendto(s.fd, payload, 0, sockaddrOf(addr)); err != nil {
		return osError("sendto", err)
	}
	return nil
}

// Send transmits one datagram to the connected peer.
func (s *DatagramSocket) Send(payload []byte) (int, error) {
	n, err := unix.Write(s.fd, payload)
	if err != nil {
		return 0, osError("write", err)
	}
	return n, nil
}

// RecvFrom receives one datagram, reporting the sender.
func (s *DatagramSocket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	n, sa, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, netip.AddrPort{}, osError("recvfrom", err)
	}
	return n, addrPortOf(sa), nil
}
