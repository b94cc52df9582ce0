// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package reflectorlink implements the gateway's side of the M17
// reflector linking protocol: CONN/ACKN/NACK/DISC/PING/PONG control
// packets plus the "M17 " network frames exchanged once linked.
package reflectorlink

import (
	"bytes"
	"log/slog"
	"net"
	"strings"

	"github.com/m17gateway/m17gateway/internal/callsign"
	"github.com/m17gateway/m17gateway/internal/lsf"
	"github.com/m17gateway/m17gateway/internal/netutil"
)

// Status mirrors the M17NET_STATUS states of the reflector link.
type Status int

const (
	StatusNotLinked Status = iota
	StatusLinking
	StatusLinked
	StatusUnlinking
	StatusRejected
	StatusFailed
)

const (
	retryMillis   = 3000
	timeoutMillis = 60000

	// queueDepth bounds how many undelivered network frames the link
	// will hold for the session controller to drain, mirroring the
	// 1000-byte ring buffer of the original link engine sized down to
	// whole frames.
	queueDepth = 18
)

// Link is the gateway's connection to one reflector.
type Link struct {
	socket  *netutil.Socket
	encoded [6]byte

	name    string
	addr    *net.UDPAddr
	module  byte
	status  Status

	retryElapsed   uint
	retryRunning   bool
	timeoutElapsed uint
	timeoutRunning bool

	queue [][]byte
}

// identityWidth is the width the operator callsign is padded to before
// the one-character role suffix is appended, producing the nine-byte
// string the base-40 codec encodes for CONN/DISC/PONG.
const identityWidth = 8

// New creates a reflector link that gateways as call/suffix, sending
// from socket.
func New(socket *netutil.Socket, call, suffix string) *Link {
	if len(call) >= identityWidth {
		call = call[:identityWidth]
	} else {
		call += strings.Repeat(" ", identityWidth-len(call))
	}
	full := call + suffix[:1]
	return &Link{
		socket:  socket,
		encoded: callsign.Encode(full),
	}
}

// Status returns the link's current state.
func (l *Link) Status() Status {
	return l.status
}

// Name returns the name of the reflector currently linked or being
// linked to.
func (l *Link) Name() string {
	return l.name
}

// Link begins linking to the named reflector on the given module.
func (l *Link) Link(name string, addr *net.UDPAddr, module byte) {
	l.name = name
	l.addr = addr
	l.module = module
	l.status = StatusLinking

	l.sendConnect()

	l.retryRunning = true
	l.retryElapsed = 0
	l.timeoutRunning = true
	l.timeoutElapsed = 0
}

// Unlink begins the disconnect handshake, a no-op unless the link is
// currently linked or linking.
func (l *Link) Unlink() {
	if l.status != StatusLinked && l.status != StatusLinking {
		return
	}

	l.status = StatusUnlinking
	l.sendDisconnect()

	l.retryRunning = true
	l.retryElapsed = 0
	l.timeoutRunning = true
	l.timeoutElapsed = 0
}

// Write sends a network frame to the reflector. It is a no-op unless
// the link is currently linked.
func (l *Link) Write(frame []byte) bool {
	if l.status != StatusLinked {
		return false
	}
	return l.socket.WriteTo(frame, l.addr) == nil
}

// Read pops the next queued network frame received from the reflector.
func (l *Link) Read() ([]byte, bool) {
	if len(l.queue) == 0 {
		return nil, false
	}
	frame := l.queue[0]
	l.queue = l.queue[1:]
	return frame, true
}

// Clock advances the retry and liveness timers by ms milliseconds and
// drains any packets waiting on the socket.
func (l *Link) Clock(ms uint) {
	if l.retryRunning {
		l.retryElapsed += ms
		if l.retryElapsed >= retryMillis {
			switch l.status {
			case StatusLinking:
				l.sendConnect()
				l.retryElapsed = 0
			case StatusUnlinking:
				l.sendDisconnect()
				l.retryElapsed = 0
			default:
				l.retryRunning = false
			}
		}
	}

	if l.timeoutRunning {
		l.timeoutElapsed += ms
		if l.timeoutElapsed >= timeoutMillis {
			switch l.status {
			case StatusLinking:
				slog.Info("linking failed with reflector", "reflector", l.name)
				l.status = StatusFailed
			case StatusUnlinking:
				l.status = StatusNotLinked
			case StatusLinked:
				slog.Info("link lost to reflector", "reflector", l.name)
				l.status = StatusFailed
			default:
				slog.Warn("timeout in unexpected reflector link state", "status", l.status)
			}

			l.timeoutRunning = false
			l.retryRunning = false
			return
		}
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
	if l.status == StatusNotLinked || l.status == StatusRejected || l.status == StatusFailed {
		return
	}

	if !netutil.Match(l.addr, addr) {
		slog.Debug("reflector packet received from an invalid source")
		return
	}

	switch {
	case len(buf) >= 4 && bytes.Equal(buf[:4], []byte("ACKN")):
		l.timeoutRunning = true
		l.timeoutElapsed = 0
		l.retryRunning = false
		l.status = StatusLinked
		slog.Info("received an ACKN from reflector", "reflector", l.name)

	case len(buf) >= 4 && bytes.Equal(buf[:4], []byte("NACK")):
		l.timeoutRunning = false
		l.retryRunning = false
		l.status = StatusRejected
		slog.Info("received a NACK from reflector", "reflector", l.name)

	case len(buf) >= 4 && bytes.Equal(buf[:4], []byte("DISC")):
		l.timeoutRunning = false
		l.retryRunning = false
		l.status = StatusNotLinked
		slog.Info("received a DISC from reflector", "reflector", l.name)

	case len(buf) >= 4 && bytes.Equal(buf[:4], []byte("PING")):
		if l.status == StatusLinked {
			l.timeoutElapsed = 0
			l.sendPong()
		}

	case lsf.IsNetworkFrame(buf):
		if l.status == StatusLinked {
			l.timeoutElapsed = 0
			l.enqueue(buf)
		}

	default:
		slog.Debug("received an unknown packet from reflector", "length", len(buf))
	}
}

func (l *Link) enqueue(frame []byte) {
	if len(l.queue) >= queueDepth {
		slog.Warn("reflector link queue full, dropping frame")
		return
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.queue = append(l.queue, cp)
}

func (l *Link) sendConnect() {
	buf := make([]byte, 11)
	copy(buf[0:4], "CONN")
	copy(buf[4:10], l.encoded[:])
	buf[10] = l.module
	slog.Debug("connecting module", "module", string(l.module))
	l.socket.WriteTo(buf, l.addr)
}

func (l *Link) sendDisconnect() {
	buf := make([]byte, 10)
	copy(buf[0:4], "DISC")
	copy(buf[4:10], l.encoded[:])
	l.socket.WriteTo(buf, l.addr)
}

func (l *Link) sendPong() {
	buf := make([]byte, 10)
	copy(buf[0:4], "PONG")
	copy(buf[4:10], l.encoded[:])
	l.socket.WriteTo(buf, l.addr)
}
