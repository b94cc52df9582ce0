// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package aprsgps decodes the GPS-subtype META field of an M17 Link
// Setup Frame into an APRS position report, and forwards it to a Sink.
package aprsgps

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/m17gateway/m17gateway/internal/lsf"
)

// GPS client identifiers carried in META byte 0.
const (
	ClientM17 uint8 = iota
	ClientOpenRTX
)

// GPS device types carried in META byte 1.
const (
	TypeHandheld uint8 = iota
	TypeMobile
	TypeFixed
)

const invalidValue = 999.0

// Sink receives a fully formatted APRS position report line.
type Sink interface {
	Write(report string)
}

// LogSink is the default Sink: it logs the report at debug level
// instead of relaying it to a real APRS-IS connection.
type LogSink struct{}

// Write logs report.
func (LogSink) Write(report string) {
	slog.Debug("aprs report", "report", report)
}

// Handler turns GPS META fields into APRS reports for one gateway
// callsign/suffix pair.
type Handler struct {
	callsign string
	sink     Sink
}

// New creates a Handler. callsign is the gateway's own callsign;
// suffix is appended as an SSID (e.g. "G" becomes "-G").
func New(callsign, suffix string, sink Sink) *Handler {
	return &Handler{
		callsign: callsign + "-" + suffix,
		sink:     sink,
	}
}

// Process decodes l's META field, if it carries GPS data, and writes
// the resulting APRS report to the handler's sink. It is a no-op for
// any other META content.
func (h *Handler) Process(l *lsf.LSF) {
	if l.EncryptionType() != lsf.EncryptionTypeNone {
		return
	}
	if l.EncryptionSubType() != lsf.EncryptionSubTypeGPS {
		return
	}

	meta := l.Meta()

	var clientText string
	switch meta[0] {
	case ClientM17:
		clientText = "M17 Client via MMDVM"
	case ClientOpenRTX:
		clientText = "OpenRTX via MMDVM"
	default:
		clientText = "M17 via MMDVM"
	}

	var sym1, sym2 byte
	switch meta[1] {
	case TypeHandheld:
		sym1, sym2 = '/', '['
	case TypeMobile:
		sym1, sym2 = '/', '>'
	case TypeFixed:
		sym1, sym2 = '/', 'y'
	default:
		sym1, sym2 = '/', 'I'
	}

	tempLat := float64(meta[2]) + float64(uint16(meta[3])<<8+uint16(meta[4]))/65535.0
	tempLon := float64(meta[5]) + float64(uint16(meta[6])<<8+uint16(meta[7]))/65535.0

	latWhole := math.Floor(tempLat)
	lonWhole := math.Floor(tempLon)
	latitude := (tempLat-latWhole)*60.0 + latWhole*100.0
	longitude := (tempLon-lonWhole)*60.0 + lonWhole*100.0

	north := byte('N')
	if meta[8]&0x01 == 0x01 {
		north = 'S'
	}
	east := byte('E')
	if meta[8]&0x02 == 0x02 {
		east = 'W'
	}

	altitude := invalidValue
	if meta[8]&0x04 == 0x04 {
		altitude = float64(uint16(meta[9])<<8+uint16(meta[10])) - 1500.0
	}

	speed, track := invalidValue, invalidValue
	if meta[8]&0x08 == 0x08 {
		track = float64(uint16(meta[11])<<8 + uint16(meta[12]))
		speed = float64(meta[13])
	}

	report := fmt.Sprintf("%s>APDPRS,M17*,qAR,%s:!%07.2f%c%c%08.2f%c%c",
		l.SrcCallsign(), h.callsign, latitude, north, sym1, longitude, east, sym2)

	if track != invalidValue && speed != invalidValue && speed > 0.0 {
		report += fmt.Sprintf("%03.0f/%03.0f", track, speed)
	}
	if altitude != invalidValue {
		report += fmt.Sprintf("/A=%06.0f", altitude)
	}
	report += " " + clientText + "\r\n"

	h.sink.Write(report)
}
