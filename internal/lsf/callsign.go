// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package lsf

import "github.com/m17gateway/m17gateway/internal/callsign"

// DestCallsign decodes the destination callsign.
func (l *LSF) DestCallsign() string {
	return callsign.Decode(l.Dest())
}

// SrcCallsign decodes the source callsign.
func (l *LSF) SrcCallsign() string {
	return callsign.Decode(l.Src())
}

// SetDestCallsign encodes and stores a destination callsign.
func (l *LSF) SetDestCallsign(call string) {
	l.SetDestBytes(callsign.Encode(call))
}

// SetSrcCallsign encodes and stores a source callsign.
func (l *LSF) SetSrcCallsign(call string) {
	l.SetSrcBytes(callsign.Encode(call))
}
