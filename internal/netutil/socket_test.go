// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package netutil

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback addresses s on 127.0.0.1. LocalAddr is the unspecified
// address the socket is bound to, which never appears as the source of
// a received datagram.
func loopback(s *Socket) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: s.LocalAddr().Port}
}

func TestSocketSendReceive(t *testing.T) {
	a, err := Listen(0)
	require.NoError(t, err)
	defer a.Close()

	b, err := Listen(0)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.WriteTo([]byte("PING"), loopback(b)))

	deadline := time.After(2 * time.Second)
	for {
		if p, ok := b.Poll(); ok {
			assert.Equal(t, "PING", string(p.Data))
			assert.True(t, Match(p.Addr, loopback(a)))
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for packet")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPollEmpty(t *testing.T) {
	s, err := Listen(0)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Poll()
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	a := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1000}
	b := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1000}
	c := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1001}

	assert.True(t, Match(a, b))
	assert.False(t, Match(a, c))
	assert.False(t, Match(nil, b))
}

func TestLookup(t *testing.T) {
	addr, err := Lookup("127.0.0.1", 17000)
	require.NoError(t, err)
	assert.Equal(t, 17000, addr.Port)
}
