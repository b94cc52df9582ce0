// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package reflectorlink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m17gateway/m17gateway/internal/lsf"
	"github.com/m17gateway/m17gateway/internal/netutil"
)

// loopback addresses s on 127.0.0.1. LocalAddr is the unspecified
// address the socket is bound to, which never appears as the source of
// a received datagram and so fails the link's source check.
func loopback(s *netutil.Socket) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: s.LocalAddr().Port}
}

func waitFor(t *testing.T, s *netutil.Socket) netutil.Packet {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if p, ok := s.Poll(); ok {
			return p
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for packet")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestLinkSendsConnectAndBecomesLinked(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	reflectorSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Link("M17-TST", loopback(reflectorSock), 'C')
	assert.Equal(t, StatusLinking, link.Status())

	pkt := waitFor(t, reflectorSock)
	assert.Equal(t, "CONN", string(pkt.Data[:4]))

	require.NoError(t, reflectorSock.WriteTo([]byte("ACKN"), pkt.Addr))
	time.Sleep(5 * time.Millisecond)
	link.Clock(10)
	assert.Equal(t, StatusLinked, link.Status())
}

func TestLinkReceivesNack(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	reflectorSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Link("M17-TST", loopback(reflectorSock), 'C')

	pkt := waitFor(t, reflectorSock)
	require.NoError(t, reflectorSock.WriteTo([]byte("NACK"), pkt.Addr))
	time.Sleep(5 * time.Millisecond)
	link.Clock(10)
	assert.Equal(t, StatusRejected, link.Status())
}

func TestLinkQueuesNetworkFrames(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	reflectorSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Link("M17-TST", loopback(reflectorSock), 'C')

	pkt := waitFor(t, reflectorSock)
	require.NoError(t, reflectorSock.WriteTo([]byte("ACKN"), pkt.Addr))
	time.Sleep(5 * time.Millisecond)
	link.Clock(10)
	require.Equal(t, StatusLinked, link.Status())

	frame := make([]byte, lsf.FrameLength)
	copy(frame, lsf.Magic[:])
	frame[10] = 0xAB
	require.NoError(t, reflectorSock.WriteTo(frame, pkt.Addr))
	time.Sleep(5 * time.Millisecond)

	link.Clock(10)
	got, ok := link.Read()
	require.True(t, ok)
	assert.Equal(t, frame, got)

	_, ok = link.Read()
	assert.False(t, ok)
}

func TestLinkTimeoutFailsWhileLinking(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	reflectorSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Link("M17-TST", reflectorSock.LocalAddr(), 'C')

	link.Clock(60000)
	assert.Equal(t, StatusFailed, link.Status())
}

func TestUnlinkIgnoredWhenNotLinked(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Unlink()
	assert.Equal(t, StatusNotLinked, link.Status())
}

func TestLinkRetransmitsConnectEveryRetryInterval(t *testing.T) {
	clientSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer clientSock.Close()

	reflectorSock, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorSock.Close()

	link := New(clientSock, "M17-GW", "G")
	link.Link("M17-TST", reflectorSock.LocalAddr(), 'C')

	first := waitFor(t, reflectorSock)
	assert.Equal(t, "CONN", string(first.Data[:4]))

	link.Clock(2999)
	_, ok := reflectorSock.Poll()
	assert.False(t, ok, "no retransmit expected before the retry interval")

	link.Clock(1)
	second := waitFor(t, reflectorSock)
	assert.Equal(t, "CONN", string(second.Data[:4]))
	assert.Equal(t, StatusLinking, link.Status())
}
