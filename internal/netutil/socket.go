// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package netutil provides the UDP plumbing shared by the reflector and
// repeater links: a socket that hands received datagrams to a single
// decision-making goroutine through a channel instead of blocking it on
// a read, plus the address-matching and resolution helpers the protocol
// engines need to validate where a packet came from.
package netutil

import (
	"log/slog"
	"net"
	"strconv"
)

// Packet is one datagram received on a Socket, together with its
// sender's address.
type Packet struct {
	Data []byte
	Addr *net.UDPAddr
}

// maxDatagram is large enough for any frame this gateway sends or
// receives; the largest is the 54-byte M17 network frame.
const maxDatagram = 200

// Socket owns a UDP connection and a background goroutine that reads
// from it, so that the caller's event loop can poll for data without
// ever blocking on a socket read.
type Socket struct {
	conn   *net.UDPConn
	inbox  chan Packet
	closed chan struct{}
}

// Listen opens a UDP socket bound to the given port (0 picks an
// ephemeral port) and starts its background reader.
func Listen(port int) (*Socket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	s := &Socket{
		conn:   conn,
		inbox:  make(chan Packet, 64),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				slog.Debug("udp read error", "error", err)
				return
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.inbox <- Packet{Data: data, Addr: addr}:
		default:
			slog.Warn("udp inbox full, dropping datagram")
		}
	}
}

// Poll returns the next received packet without blocking. The second
// return value is false if nothing is waiting.
func (s *Socket) Poll() (Packet, bool) {
	select {
	case p := <-s.inbox:
		return p, true
	default:
		return Packet{}, false
	}
}

// WriteTo sends data to addr.
func (s *Socket) WriteTo(data []byte, addr *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(data, addr)
	return err
}

// Close shuts down the socket and its reader goroutine.
func (s *Socket) Close() error {
	close(s.closed)
	return s.conn.Close()
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Lookup resolves host:port to a UDP address, trying both IPv4 and
// IPv6 the way the gateway's reflector directory does.
func Lookup(host string, port int) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// Match reports whether two addresses refer to the same IP and port,
// used to validate that a reply came from the peer a session is
// actually talking to rather than some other host on the same port.
func Match(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
