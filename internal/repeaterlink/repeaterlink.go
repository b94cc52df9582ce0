// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package repeaterlink implements the gateway's side of the link to the
// local modem or repeater: a simple UDP peer with no handshake, kept
// alive with a PING every five seconds and otherwise passing "M17 "
// network frames straight through.
package repeaterlink

import (
	"bytes"
	"log/slog"
	"net"

	"github.com/m17gateway/m17gateway/internal/lsf"
	"github.com/m17gateway/m17gateway/internal/netutil"
)

const (
	pingIntervalMillis = 5000
	queueDepth         = 18
)

// Link is the gateway's connection to the local repeater/modem.
type Link struct {
	socket *netutil.Socket
	addr   *net.UDPAddr

	pingElapsed uint
	queue       [][]byte
}

// New creates a repeater link bound to socket and addressed at addr.
// The keepalive timer starts at once; the first PING goes out after
// five seconds of Clock time.
func New(socket *netutil.Socket, addr *net.UDPAddr) *Link {
	return &Link{socket: socket, addr: addr}
}

// Write sends a network frame to the repeater.
func (l *Link) Write(frame []byte) bool {
	return l.socket.WriteTo(frame, l.addr) == nil
}

// Read pops the next queued network frame received from the repeater.
func (l *Link) Read() ([]byte, bool) {
	if len(l.queue) == 0 {
		return nil, false
	}
	frame := l.queue[0]
	l.queue = l.queue[1:]
	return frame, true
}

// Clock advances the keepalive timer by ms milliseconds and drains any
// packets waiting on the socket.
func (l *Link) Clock(ms uint) {
	l.pingElapsed += ms
	if l.pingElapsed >= pingIntervalMillis {
		l.sendPing()
		l.pingElapsed = 0
	}

	for {
		pkt, ok := l.socket.Poll()
		if !ok {
			return
		}
		l.handle(pkt.Data, pkt.Addr)
	}
}

func (l *Link) handle(buf []byte, addr *net.UDPAddr) {
	if !netutil.Match(l.addr, addr) {
		slog.Debug("rpt packet received from an invalid source")
		return
	}

	if len(buf) >= 4 && bytes.Equal(buf[:4], []byte("PING")) {
		return
	}

	if !lsf.IsNetworkFrame(buf) {
		slog.Debug("rpt received unknown packet", "length", len(buf))
		return
	}

	if len(l.queue) >= queueDepth {
		slog.Warn("rpt link queue full, dropping frame")
		return
	}

	cp := make([]byte, len(buf))
	copy(cp, buf)
	l.queue = append(l.queue, cp)
}

func (l *Link) sendPing() {
	l.socket.WriteTo([]byte("PING"), l.addr)
}
