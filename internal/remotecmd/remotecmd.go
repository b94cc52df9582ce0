// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package remotecmd implements the plain-text UDP remote-control
// socket: "Reflector <name>" switches the linked reflector, "status"
// reports the link state, and "host" reports the linked reflector's
// name.
package remotecmd

import (
	"log/slog"
	"net"
	"strings"

	"github.com/m17gateway/m17gateway/internal/netutil"
)

// reflectorNameWidth matches the full nine-character callsign field a
// reflector name plus module letter occupies on the wire.
const reflectorNameWidth = 9

// Controller is the subset of session state the remote-command handler
// needs. It is implemented by the session controller.
type Controller interface {
	// NetworkActive reports whether the reflector link exists at all.
	NetworkActive() bool
	// IsLinked reports whether the reflector link is currently linked.
	IsLinked() bool
	// CurrentReflectorName returns the linked (or linking) reflector's
	// nine-character name, or "" if none.
	CurrentReflectorName() string
	// SwitchReflector requests a switch to the nine-character-padded
	// reflector name (which may be all spaces to mean "unlink").
	SwitchReflector(name string)
}

// Handler serves the remote-command socket.
type Handler struct {
	socket     *netutil.Socket
	controller Controller
}

// New creates a remote-command handler bound to socket.
func New(socket *netutil.Socket, controller Controller) *Handler {
	return &Handler{socket: socket, controller: controller}
}

// Clock drains and processes any commands waiting on the socket.
func (h *Handler) Clock() {
	for {
		pkt, ok := h.socket.Poll()
		if !ok {
			return
		}
		h.handle(pkt.Data, pkt.Addr)
	}
}

func (h *Handler) handle(buf []byte, addr *net.UDPAddr) {
	switch {
	case hasPrefix(buf, "Reflector"):
		h.handleReflector(buf)

	case hasPrefix(buf, "status"):
		h.reply(addr, "m17:"+h.status())

	case hasPrefix(buf, "host"):
		h.reply(addr, "m17:\""+h.host()+"\"")

	default:
		slog.Warn("invalid remote command received", "length", len(buf))
	}
}

func (h *Handler) handleReflector(buf []byte) {
	var name string
	if len(buf) > 10 {
		name = string(buf[10:])
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = fit(name)

	if name == fit(h.controller.CurrentReflectorName()) {
		return
	}

	h.controller.SwitchReflector(name)
}

func (h *Handler) status() string {
	if !h.controller.NetworkActive() {
		return "n/a"
	}
	if h.controller.IsLinked() {
		return "conn"
	}
	return "disc"
}

func (h *Handler) host() string {
	name := strings.TrimRight(h.controller.CurrentReflectorName(), " ")
	if !h.controller.NetworkActive() || name == "" {
		return "NONE"
	}
	return strings.ReplaceAll(name, " ", "_")
}

func (h *Handler) reply(addr *net.UDPAddr, msg string) {
	if err := h.socket.WriteTo([]byte(msg), addr); err != nil {
		slog.Debug("remote command reply failed", "error", err)
	}
}

func fit(name string) string {
	if len(name) >= reflectorNameWidth {
		return name[:reflectorNameWidth]
	}
	return name + strings.Repeat(" ", reflectorNameWidth-len(name))
}

// hasPrefix reports whether buf begins with prefix, treating buf
// as the raw bytes of a command datagram that may not be NUL-terminated
// or may run shorter than prefix.
func hasPrefix(buf []byte, prefix string) bool {
	if len(buf) < len(prefix) {
		return false
	}
	return string(buf[:len(prefix)]) == prefix
}
