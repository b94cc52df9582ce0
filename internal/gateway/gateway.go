// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package gateway assembles the gateway's sockets, protocol engines
// and session controller from a loaded configuration, and drives the
// cooperative event loop that everything else hangs off.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m17gateway/m17gateway/internal/aprsgps"
	"github.com/m17gateway/m17gateway/internal/config"
	"github.com/m17gateway/m17gateway/internal/echo"
	"github.com/m17gateway/m17gateway/internal/metrics"
	"github.com/m17gateway/m17gateway/internal/netutil"
	"github.com/m17gateway/m17gateway/internal/reflectordb"
	"github.com/m17gateway/m17gateway/internal/reflectorlink"
	"github.com/m17gateway/m17gateway/internal/remotecmd"
	"github.com/m17gateway/m17gateway/internal/repeaterlink"
	"github.com/m17gateway/m17gateway/internal/session"
	"github.com/m17gateway/m17gateway/internal/voiceprompt"
)

// tickInterval bounds the event loop at 200 iterations per second: an
// iteration that finishes faster than this sleeps out the remainder.
const tickInterval = 5 * time.Millisecond

// echoSeconds is the echo engine's recording capacity.
const echoSeconds = 240

// Gateway is one fully wired gateway instance. It owns its sockets;
// the reflector directory and metrics registry are shared with the
// caller so they survive a hot restart.
type Gateway struct {
	controller *session.Controller

	reflectorSocket *netutil.Socket
	repeaterSocket  *netutil.Socket
	remoteSocket    *netutil.Socket
}

// New binds the gateway's sockets and wires every component together.
// A repeater or reflector socket that cannot be bound is fatal; a
// remote-command socket that cannot be bound only disables that
// feature.
func New(cfg *config.Config, directory *reflectordb.Directory, m *metrics.Metrics) (*Gateway, error) {
	rptAddr, err := netutil.Lookup(cfg.General.RptAddress, cfg.General.RptPort)
	if err != nil {
		return nil, fmt.Errorf("gateway: unable to resolve repeater address %s: %w", cfg.General.RptAddress, err)
	}

	repeaterSocket, err := netutil.Listen(cfg.General.LocalPort)
	if err != nil {
		return nil, fmt.Errorf("gateway: unable to bind repeater socket: %w", err)
	}

	reflectorSocket, err := netutil.Listen(cfg.Network.Port)
	if err != nil {
		repeaterSocket.Close()
		return nil, fmt.Errorf("gateway: unable to bind reflector socket: %w", err)
	}

	controller := session.New(session.Options{
		ReflectorLink:   reflectorlink.New(reflectorSocket, cfg.General.Callsign, cfg.General.Suffix),
		RepeaterLink:    repeaterlink.New(repeaterSocket, rptAddr),
		EchoEngine:      echo.New(echoSeconds),
		Directory:       directory,
		VoicePrompt:     voiceprompt.NullProducer{},
		GPS:             aprsgps.New(cfg.General.Callsign, cfg.General.Suffix, aprsgps.LogSink{}),
		Metrics:         m,
		Startup:         cfg.Network.Startup,
		HangTimeSeconds: cfg.Network.HangTime,
		Revert:          cfg.Network.Revert,
	})

	g := &Gateway{
		controller:      controller,
		reflectorSocket: reflectorSocket,
		repeaterSocket:  repeaterSocket,
	}

	if cfg.RemoteCommands.Enable {
		remoteSocket, err := netutil.Listen(cfg.RemoteCommands.Port)
		if err != nil {
			slog.Warn("unable to bind remote-command socket, feature disabled",
				"port", cfg.RemoteCommands.Port, "error", err)
		} else {
			g.remoteSocket = remoteSocket
			controller.AttachRemote(remotecmd.New(remoteSocket, controller))
		}
	}

	return g, nil
}

// Controller exposes the session controller, mainly for tests.
func (g *Gateway) Controller() *session.Controller {
	return g.controller
}

// Run links to the startup reflector (if configured) and drives the
// event loop until ctx is cancelled. Each iteration advances every
// component's clock by the wall time since the previous iteration.
func (g *Gateway) Run(ctx context.Context) {
	g.controller.Start()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		ms := uint(now.Sub(last) / time.Millisecond)
		last = now

		g.controller.Tick(ms)

		if elapsed := time.Since(now); elapsed < tickInterval {
			time.Sleep(tickInterval - elapsed)
		}
	}
}

// Close disconnects from the reflector, if linked, and releases the
// gateway's sockets.
func (g *Gateway) Close() {
	g.controller.Stop()

	g.reflectorSocket.Close()
	g.repeaterSocket.Close()
	if g.remoteSocket != nil {
		g.remoteSocket.Close()
	}
}
