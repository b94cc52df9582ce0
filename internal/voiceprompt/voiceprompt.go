// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package voiceprompt defines the interface the session controller uses
// to announce link-state changes ("Linked to M17-GBR A", "Not linked")
// as a short burst of M17 voice frames played over the repeater link.
package voiceprompt

import "github.com/m17gateway/m17gateway/internal/lsf"

// Producer synthesizes and streams voice-prompt audio. Implementations
// are driven the same way as the other protocol engines: Clock is
// called once per event-loop tick, and Read is polled for frames to
// send to the repeater link while a prompt is in progress.
type Producer interface {
	// IsBusy reports whether a prompt is currently queued or playing.
	IsBusy() bool

	// Start begins playing the startup announcement.
	Start()

	// LinkedTo queues the "linked to <reflector>" announcement.
	LinkedTo(reflector string)

	// Unlinked queues the "not linked" announcement.
	Unlinked()

	// Info queues the status announcement requested by a modem INFO
	// transmission.
	Info()

	// Clock advances internal playback pacing by ms milliseconds.
	Clock(ms uint)

	// Read pops the next network frame of the prompt into frame. It
	// returns false once nothing more is queued.
	Read(frame []byte) bool
}

// NullProducer is a Producer that never has anything to say. The gateway
// always wires it in (there is no voice-prompt setting), so it runs with
// voice prompts disabled entirely.
type NullProducer struct{}

var _ Producer = NullProducer{}

func (NullProducer) IsBusy() bool       { return false }
func (NullProducer) Start()             {}
func (NullProducer) LinkedTo(_ string)  {}
func (NullProducer) Unlinked()          {}
func (NullProducer) Info()              {}
func (NullProducer) Clock(_ uint)       {}
func (NullProducer) Read(_ []byte) bool { return false }

// frameLength is the size of one M17 network frame, matching the unit
// Producer.Read deals in.
const frameLength = lsf.FrameLength
