// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package session implements the gateway's top-level event loop: the
// master state machine that drives the reflector link, the repeater
// link, the echo engine and the reflector directory, arbitrates which
// producer feeds the modem, rewrites frames in flight, and drives every
// other component's clock once per iteration.
package session

import (
	"log/slog"
	"net"
	"strings"

	"github.com/m17gateway/m17gateway/internal/aprsgps"
	"github.com/m17gateway/m17gateway/internal/callsign"
	"github.com/m17gateway/m17gateway/internal/echo"
	"github.com/m17gateway/m17gateway/internal/lsf"
	"github.com/m17gateway/m17gateway/internal/metrics"
	"github.com/m17gateway/m17gateway/internal/reflectordb"
	"github.com/m17gateway/m17gateway/internal/reflectorlink"
	"github.com/m17gateway/m17gateway/internal/remotecmd"
	"github.com/m17gateway/m17gateway/internal/repeaterlink"
	"github.com/m17gateway/m17gateway/internal/voiceprompt"
)

// State is the session controller's top-level state, distinct from
// (but kept in sync with) the underlying reflector link's own state.
type State int

const (
	StateNotLinked State = iota
	StateLinking
	StateLinked
	StateUnlinking
	StateEcho
)

func (s State) String() string {
	switch s {
	case StateLinking:
		return "linking"
	case StateLinked:
		return "linked"
	case StateUnlinking:
		return "unlinking"
	case StateEcho:
		return "echo"
	default:
		return "not-linked"
	}
}

// Control destinations recognized on modem-originated frames.
const (
	destEcho   = "ECHO"
	destInfo   = "INFO"
	destUnlink = "UNLINK"
)

// META injection cadence: six of every metaCycleLength frames carry
// source+reflector metadata, in a six-frame window at the end of each
// cycle (so frames 41-46, 87-92, ... of a transmission).
const (
	metaCycleLength = 46
	metaWindowStart = 41
	metaWindowEnd   = 46
)

// nameWidth is the width a reflector name is padded to before the
// module-letter suffix is appended, producing the full nine-character
// destination field ("M17-USA" + " " + "A").
const nameWidth = 7

// Options bundles every collaborator the session controller drives.
// Everything here is owned by the caller, not the Controller; the
// Controller never closes a socket or otherwise reaches behind a
// collaborator's own API.
type Options struct {
	ReflectorLink *reflectorlink.Link
	RepeaterLink  *repeaterlink.Link
	EchoEngine    *echo.Engine
	Directory     *reflectordb.Directory
	VoicePrompt   voiceprompt.Producer
	GPS           *aprsgps.Handler // nil disables GPS extraction
	Metrics       *metrics.Metrics // nil disables metrics

	// Startup is the nine-character, space-padded destination the
	// gateway attempts to link to at Start, e.g. "M17-USA A". A blank
	// (all-spaces or empty) value means "stay not-linked at startup".
	Startup string

	HangTimeSeconds uint
	Revert          bool
}

// Controller is the session's master state machine.
type Controller struct {
	reflectorLink *reflectorlink.Link
	repeaterLink  *repeaterlink.Link
	echoEngine    *echo.Engine
	directory     *reflectordb.Directory
	voicePrompt   voiceprompt.Producer
	gps           *aprsgps.Handler
	metrics       *metrics.Metrics
	remote        *remotecmd.Handler

	startupDest string
	hangMillis  uint
	revert      bool

	state    State
	oldState State

	haveCurrent bool
	current     reflectordb.Entry
	module      byte

	metaCounter int

	inactiveRunning bool
	inactiveElapsed uint
}

// New creates a session controller. It does not start linking; call
// Start once every collaborator is ready to run.
func New(opts Options) *Controller {
	c := &Controller{
		reflectorLink: opts.ReflectorLink,
		repeaterLink:  opts.RepeaterLink,
		echoEngine:    opts.EchoEngine,
		directory:     opts.Directory,
		voicePrompt:   opts.VoicePrompt,
		gps:           opts.GPS,
		metrics:       opts.Metrics,
		startupDest:   opts.Startup,
		hangMillis:    opts.HangTimeSeconds * 1000,
		revert:        opts.Revert,
	}
	if c.voicePrompt == nil {
		c.voicePrompt = voiceprompt.NullProducer{}
	}
	return c
}

// AttachRemote wires the optional remote-command handler. It is
// serviced from Tick once attached.
func (c *Controller) AttachRemote(h *remotecmd.Handler) {
	c.remote = h
}

// Start adopts the configured startup reflector, if any resolves in
// the directory and its destination ends in a module letter; otherwise
// the session remains StateNotLinked. Either way the voice prompt is
// primed with the resulting link state and told to play its startup
// announcement.
func (c *Controller) Start() {
	c.voicePrompt.Unlinked()
	defer c.voicePrompt.Start()

	trimmed := strings.TrimRight(c.startupDest, " ")
	if len(trimmed) < 2 {
		return
	}
	module := trimmed[len(trimmed)-1]
	if module < 'A' || module > 'Z' {
		return
	}

	entry := c.directory.Find(trimmed)
	if entry == nil {
		slog.Warn("startup reflector not found in directory", "reflector", trimmed)
		return
	}

	slog.Info("linking at startup", "reflector", trimmed)
	c.beginLink(*entry, module)
	c.voicePrompt.LinkedTo(c.CurrentReflectorName())
}

// Stop sends a disconnect to the reflector ahead of process shutdown,
// if a link is up or being brought up. The DISC is best-effort; no
// retry runs afterwards.
func (c *Controller) Stop() {
	if c.state == StateLinked || c.state == StateLinking {
		c.reflectorLink.Unlink()
	}
}

// Tick runs one iteration of the event loop, advancing every
// collaborator's clock by ms milliseconds. Reflector-inbound is
// serviced before modem-inbound, which is serviced before the
// remote-command socket. The ordering matters: a same-iteration UNLINK
// seen after a reflector frame still lets that frame play out before
// teardown starts on the next iteration.
func (c *Controller) Tick(ms uint) {
	c.reflectorLink.Clock(ms)
	c.reconcile()
	c.serviceReflectorToModem()
	c.serviceEchoToModem()

	c.repeaterLink.Clock(ms)
	c.serviceModemInbound()

	c.voicePrompt.Clock(ms)
	c.serviceVoicePromptToModem()

	if c.remote != nil {
		c.remote.Clock()
	}

	c.directory.Clock(ms)
	c.echoEngine.Clock(ms)
	c.advanceInactivity(ms)
	c.updateMetrics()
}

// State returns the session's current top-level state.
func (c *Controller) State() State {
	return c.state
}

// reconcile reconciles the session state against the reflector link's
// own status. It never touches StateEcho:
// echo playback is independent of reflector-link health and restores
// to oldState verbatim, letting the next non-echo tick correct it.
func (c *Controller) reconcile() {
	ls := c.reflectorLink.Status()

	switch c.state {
	case StateLinking:
		switch ls {
		case reflectorlink.StatusLinking:
		case reflectorlink.StatusLinked:
			c.state = StateLinked
			slog.Info("linked to reflector", "reflector", c.CurrentReflectorName())
		case reflectorlink.StatusRejected:
			slog.Info("reflector rejected the link", "reflector", c.CurrentReflectorName())
			c.state = StateNotLinked
			c.haveCurrent = false
			c.voicePrompt.Unlinked()
		default:
			c.reflectorLink.Link(c.current.Name, c.currentAddr(), c.module)
		}

	case StateLinked:
		switch ls {
		case reflectorlink.StatusLinked:
		case reflectorlink.StatusFailed:
			slog.Info("relinking after liveness failure", "reflector", c.CurrentReflectorName())
			c.reflectorLink.Link(c.current.Name, c.currentAddr(), c.module)
			c.state = StateLinking
		default:
			c.state = StateNotLinked
			c.haveCurrent = false
			c.voicePrompt.Unlinked()
		}

	case StateUnlinking:
		if ls != reflectorlink.StatusUnlinking {
			c.state = StateNotLinked
			c.haveCurrent = false
		}
	}
}

func (c *Controller) currentAddr() *net.UDPAddr {
	if c.current.IPv4 != nil {
		return c.current.IPv4
	}
	return c.current.IPv6
}

func (c *Controller) beginLink(entry reflectordb.Entry, module byte) {
	c.current = entry
	c.module = module
	c.haveCurrent = true
	c.reflectorLink.Link(entry.Name, c.currentAddr(), module)
	c.state = StateLinking
}

// CurrentReflectorName returns the nine-character, space-padded
// destination of the reflector currently linked or being linked to
// ("M17-USA A"), or "" if none is selected.
func (c *Controller) CurrentReflectorName() string {
	if !c.haveCurrent {
		return ""
	}
	return fit(c.current.Name, nameWidth+1) + string(c.module)
}

// NetworkActive reports whether the session has a reflector link to
// report on at all; it is always true once a Controller exists.
func (c *Controller) NetworkActive() bool {
	return true
}

// IsLinked reports whether the reflector link is currently linked.
func (c *Controller) IsLinked() bool {
	return c.reflectorLink.Status() == reflectorlink.StatusLinked
}

// SwitchReflector requests a switch to the nine-character-padded
// destination name, satisfying remotecmd.Controller. An all-blank name
// requests an unlink.
func (c *Controller) SwitchReflector(name string) {
	trimmed := strings.TrimRight(name, " ")
	if trimmed == "" {
		c.requestUnlink()
		return
	}
	if len(trimmed) != nameWidth+2 {
		slog.Warn("remote reflector selection is not a valid module destination", "destination", name)
		return
	}
	module := trimmed[len(trimmed)-1]
	if module < 'A' || module > 'Z' {
		slog.Warn("remote reflector selection has no module letter", "destination", name)
		return
	}
	c.switchTo(trimmed, module)
}

// serviceReflectorToModem drains frames the reflector link has
// buffered and forwards them to the repeater, rewriting destination
// and periodically injecting source+reflector META.
func (c *Controller) serviceReflectorToModem() {
	if c.state != StateLinked {
		return
	}
	for {
		frame, ok := c.reflectorLink.Read()
		if !ok {
			return
		}
		c.rewriteReflectorFrame(frame)
		if !c.voicePrompt.IsBusy() {
			c.repeaterLink.Write(frame)
		}
		c.touchActivity()
		if c.metrics != nil {
			c.metrics.RecordFrameRelayed("reflector-to-repeater")
		}
		if lsf.IsEOT(frame) {
			c.metaCounter = 0
		}
	}
}

func (c *Controller) rewriteReflectorFrame(frame []byte) {
	l := lsf.FromNetwork(frame)
	if c.injectMeta(&l) {
		var meta [lsf.MetaLength]byte
		src := l.Src()
		refl := callsign.Encode(c.current.Name)
		copy(meta[0:6], src[:])
		copy(meta[6:12], refl[:])
		l.SetMeta(meta)
	}
	l.SetDestCallsign(callsign.All)
	l.WriteTo(frame)
}

// serviceEchoToModem drains paced playback frames from the echo engine
// while the session is in StateEcho, restoring the prior session state
// once playback completes.
func (c *Controller) serviceEchoToModem() {
	if c.state != StateEcho {
		return
	}

	frame := make([]byte, lsf.FrameLength)
	switch c.echoEngine.Read(frame) {
	case echo.ReadData:
		c.rewriteEchoFrame(frame)
		if !c.voicePrompt.IsBusy() {
			c.repeaterLink.Write(frame)
		}
		c.touchActivity()
	case echo.ReadEnd:
		slog.Info("echo playback complete")
		c.state = c.oldState
	case echo.ReadNone:
	}
}

func (c *Controller) rewriteEchoFrame(frame []byte) {
	l := lsf.FromNetwork(frame)
	if c.injectMeta(&l) {
		var meta [lsf.MetaLength]byte
		src := l.Src()
		copy(meta[0:6], src[:])
		l.SetMeta(meta)
	}
	l.WriteTo(frame)
}

// injectMeta advances the shared META-injection cadence counter and
// reports whether this frame falls in the injection window, setting
// the encryption type/subtype fields when it does.
func (c *Controller) injectMeta(l *lsf.LSF) bool {
	c.metaCounter++
	if c.metaCounter > metaCycleLength {
		c.metaCounter = 1
	}
	if c.metaCounter < metaWindowStart || c.metaCounter > metaWindowEnd {
		return false
	}
	l.SetEncryptionType(lsf.EncryptionTypeNone)
	l.SetEncryptionSubType(lsf.EncryptionSubTypeCallsigns)
	return true
}

// serviceModemInbound drains frames from the repeater link, dispatching
// control destinations and forwarding everything else.
func (c *Controller) serviceModemInbound() {
	for {
		frame, ok := c.repeaterLink.Read()
		if !ok {
			return
		}

		l := lsf.FromNetwork(frame)
		if c.gps != nil {
			c.gps.Process(&l)
		}

		dest := strings.TrimRight(l.DestCallsign(), " ")
		switch {
		case dest == destEcho:
			c.handleEcho(frame)
		case dest == destInfo:
			c.handleInfo(frame)
		case dest == destUnlink:
			c.requestUnlink()
		case len(dest) == nameWidth+2 && dest[nameWidth+1] >= 'A' && dest[nameWidth+1] <= 'Z':
			if c.haveCurrent && c.CurrentReflectorName() == dest {
				c.forward(frame)
			} else {
				c.switchTo(dest, dest[nameWidth+1])
			}
		default:
			c.forward(frame)
		}
	}
}

func (c *Controller) handleEcho(frame []byte) {
	if c.state != StateEcho {
		c.oldState = c.state
		c.echoEngine.Clear()
		c.metaCounter = 0
	}
	c.echoEngine.Write(frame)
	c.state = StateEcho
	c.touchActivity()
	if lsf.IsEOT(frame) {
		c.echoEngine.End()
	}
}

func (c *Controller) handleInfo(frame []byte) {
	c.touchActivity()
	if lsf.IsEOT(frame) {
		c.voicePrompt.Info()
	}
}

func (c *Controller) requestUnlink() {
	if c.state != StateLinked && c.state != StateLinking {
		return
	}
	c.reflectorLink.Unlink()
	c.state = StateUnlinking
	c.voicePrompt.Unlinked()
	c.inactiveRunning = false
}

// switchTo unlinks from the current reflector (if any) and begins
// linking to dest, a nine-character destination ("M17-GBR B"). If the
// new reflector cannot be found in the directory, the session falls
// back to unlinked rather than staying on the old reflector.
func (c *Controller) switchTo(dest string, module byte) {
	if c.haveCurrent {
		c.reflectorLink.Unlink()
	}

	entry := c.directory.Find(dest[:nameWidth])
	if entry == nil {
		slog.Warn("requested reflector not found in directory", "reflector", dest)
		c.haveCurrent = false
		c.state = StateUnlinking
		c.voicePrompt.Unlinked()
		c.inactiveRunning = false
		return
	}

	c.beginLink(*entry, module)
	c.voicePrompt.LinkedTo(c.CurrentReflectorName())
	c.touchActivity()
}

// forward rewrites dest to the current reflector and relays the frame,
// a no-op unless the session is actually linked.
func (c *Controller) forward(frame []byte) {
	if c.state != StateLinked {
		return
	}
	l := lsf.FromNetwork(frame)
	l.SetDestCallsign(c.CurrentReflectorName())
	l.WriteTo(frame)
	c.reflectorLink.Write(frame)
	c.touchActivity()
	if c.metrics != nil {
		c.metrics.RecordFrameRelayed("repeater-to-reflector")
	}
}

func (c *Controller) serviceVoicePromptToModem() {
	frame := make([]byte, lsf.FrameLength)
	if c.voicePrompt.Read(frame) {
		c.repeaterLink.Write(frame)
	}
}

func (c *Controller) touchActivity() {
	if c.hangMillis == 0 {
		return
	}
	c.inactiveRunning = true
	c.inactiveElapsed = 0
}

func (c *Controller) advanceInactivity(ms uint) {
	if !c.inactiveRunning || c.hangMillis == 0 {
		return
	}
	c.inactiveElapsed += ms
	if c.inactiveElapsed < c.hangMillis {
		return
	}
	c.inactiveRunning = false
	c.revertOnInactivity()
}

func (c *Controller) revertOnInactivity() {
	if !c.revert {
		return
	}

	trimmed := strings.TrimRight(c.startupDest, " ")
	if trimmed == "" {
		if c.haveCurrent {
			c.reflectorLink.Unlink()
			c.state = StateUnlinking
			c.haveCurrent = false
		}
		return
	}

	if c.haveCurrent && c.CurrentReflectorName() == trimmed {
		return
	}

	module := trimmed[len(trimmed)-1]
	if module < 'A' || module > 'Z' {
		slog.Warn("startup reflector has no module letter, cannot revert", "destination", c.startupDest)
		return
	}
	c.switchTo(trimmed, module)
}

func (c *Controller) updateMetrics() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetReflectorLinkStatus(int(c.reflectorLink.Status()))
	c.metrics.SetReflectorDirectorySize(c.directory.Count())
	c.metrics.SetEchoActive(c.state == StateEcho)
}

func fit(name string, width int) string {
	if len(name) >= width {
		return name[:width]
	}
	return name + strings.Repeat(" ", width-len(name))
}
