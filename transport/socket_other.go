//go:build !linux
// +build !linux

// File: transport/socket_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stubs for platforms without a transport implementation.

package transport

import (
	"net/netip"

	"github.com/momentics/hioload-reactor/api"
)

var errUnsupported = api.NewError(api.ErrCodeUnsupported, "transport unavailable on this platform")

// stubSocket satisfies api.Socket for the stub types; constructors
// never hand one out.
type stubSocket struct{}

func (stubSocket) Handle() api.Handle { return api.InvalidHandle }

func (stubSocket) ReactorContext() any { return nil }

func (stubSocket) SetReactorContext(any) {}

func (stubSocket) NotificationQueue() api.NotificationQueue { return nil }

func (stubSocket) Close() error { return errUnsupported }

// DatagramSocket is unavailable on this platform.
type DatagramSocket struct{ stubSocket }

// NewDatagramSocket reports that the platform has no transport.
func NewDatagramSocket(netip.AddrPort) (*DatagramSocket, error) { return nil, errUnsupported }

// StreamSocket is unavailable on this platform.
type StreamSocket struct{ stubSocket }

// NewStreamSocket reports that the platform has no transport.
func NewStreamSocket(netip.AddrPort) (*StreamSocket, error) { return nil, errUnsupported }

// ListenerSocket is unavailable on this platform.
type ListenerSocket struct{ stubSocket }

// NewListenerSocket reports that the platform has no transport.
func NewListenerSocket(netip.AddrPort) (*ListenerSocket, error) { return nil, errUnsupported }
