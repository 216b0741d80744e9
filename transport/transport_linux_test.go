//go:build linux
// +build linux

// File: transport/transport_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
)

var loopback = netip.MustParseAddrPort("127.0.0.1:0")

func TestDatagramRoundTrip(t *testing.T) {
	a, err := NewDatagramSocket(loopback)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Bind(loopback))
	aAddr, err := a.LocalAddr()
	require.NoError(t, err)

	b, err := NewDatagramSocket(loopback)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Bind(loopback))

	require.NoError(t, b.SendTo([]byte("ping"), aAddr))

	buf := make([]byte, 64)
	var n int
	var from netip.AddrPort
	for {
		n, from, err = a.RecvFrom(buf)
		if api.CodeOf(err) == api.ErrCodeWouldBlock {
			continue
		}
		break
	}
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
	bAddr, err := b.LocalAddr()
	require.NoError(t, err)
	require.Equal(t, bAddr.Port(), from.Port())
}

func TestDatagramRecvWouldBlock(t *testing.T) {
	s, err := NewDatagramSocket(loopback)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Bind(loopback))

	buf := make([]byte, 16)
	_, _, err = s.RecvFrom(buf)
	require.Equal(t, api.ErrCodeWouldBlock, api.CodeOf(err))
}

func TestListenerAcceptWouldBlock(t *testing.T) {
	l, err := NewListenerSocket(loopback)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Listen(loopback, 0))

	_, _, err = l.Accept()
	require.Equal(t, api.ErrCodeWouldBlock, api.CodeOf(err))
}

func TestStreamConnectAndEcho(t *testing.T) {
	l, err := NewListenerSocket(loopback)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Listen(loopback, 8))
	lAddr, err := l.LocalAddr()
	require.NoError(t, err)

	c, err := NewStreamSocket(loopback)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Connect(lAddr))

	var server *StreamSocket
	for {
		server, _, err = l.Accept()
		if api.CodeOf(err) == api.ErrCodeWouldBlock {
			continue
		}
		require.NoError(t, err)
		break
	}
	defer server.Close()
	require.NoError(t, c.ConnectError())

	for {
		_, err = c.Send([]byte("hello"))
		if api.CodeOf(err) == api.ErrCodeWouldBlock {
			continue
		}
		require.NoError(t, err)
		break
	}

	buf := make([]byte, 16)
	var n int
	for {
		n, err = server.Recv(buf)
		if api.CodeOf(err) == api.ErrCodeWouldBlock {
			continue
		}
		require.NoError(t, err)
		break
	}
	require.Equal(t, "hello", string(buf[:n]))
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := NewDatagramSocket(loopback)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSocketCarriesNotificationQueue(t *testing.T) {
	s, err := NewDatagramSocket(loopback)
	require.NoError(t, err)
	defer s.Close()

	q := s.NotificationQueue()
	require.NotNil(t, q)
	require.True(t, q.Push(api.Notification{Kind: api.NotificationSendCompleted, ID: 1}))
	require.Len(t, q.Drain(), 1)
}
