// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package lsf implements the M17 Link Setup Frame accessors and the
// fixed-size network frame that carries it between the gateway and its
// two UDP peers (reflector and repeater).
package lsf

import "encoding/binary"

// Wire layout constants for an "M17 " network frame.
const (
	MagicLength    = 4
	StreamIDLength = 2
	Length         = 28 // LSF length in bytes
	MetaLength     = 14
	FrameNoLength  = 2
	PayloadLength  = 16
	CRCLength      = 2

	// FrameLength is the total size of a network frame: magic, stream
	// ID, LSF, frame number, payload and CRC.
	FrameLength = MagicLength + StreamIDLength + Length + FrameNoLength + PayloadLength + CRCLength

	// Offsets of each section within a network frame.
	OffsetStreamID = MagicLength
	OffsetLSF      = OffsetStreamID + StreamIDLength
	OffsetFrameNo  = OffsetLSF + Length
	OffsetPayload  = OffsetFrameNo + FrameNoLength
	OffsetCRC      = OffsetPayload + PayloadLength
)

// Magic is the literal 4-byte tag identifying an M17 network frame.
var Magic = [MagicLength]byte{'M', '1', '7', ' '}

// Encryption types (LSF type field bits 3-4).
const (
	EncryptionTypeNone = 0
)

// Encryption sub-types (LSF type field bits 5-6).
const (
	EncryptionSubTypeCallsigns = 2
	EncryptionSubTypeGPS       = 1
)

// EOTBit is the frame-number bit marking the final frame of a transmission.
const EOTBit = 0x8000

// FrameNumber extracts the 16-bit frame number field from a network frame.
// frame must be at least FrameLength bytes.
func FrameNumber(frame []byte) uint16 {
	return binary.BigEndian.Uint16(frame[OffsetFrameNo : OffsetFrameNo+FrameNoLength])
}

// IsEOT reports whether the frame's top frame-number bit (end of
// transmission) is set.
func IsEOT(frame []byte) bool {
	return FrameNumber(frame)&EOTBit == EOTBit
}

// IsNetworkFrame reports whether data begins with the "M17 " magic and is
// exactly FrameLength bytes long.
func IsNetworkFrame(data []byte) bool {
	return len(data) == FrameLength && string(data[:MagicLength]) == string(Magic[:])
}

// LSF is a decoded view over the 28-byte Link Setup Frame embedded in a
// network frame, starting at byte offset OffsetLSF.
type LSF struct {
	data [Length]byte
}

// FromNetwork copies the LSF bytes out of a network frame.
func FromNetwork(frame []byte) LSF {
	var l LSF
	copy(l.data[:], frame[OffsetLSF:OffsetLSF+Length])
	return l
}

// Bytes returns the raw 28-byte LSF.
func (l *LSF) Bytes() [Length]byte {
	return l.data
}

// WriteTo copies the LSF back into a network frame at the LSF offset.
func (l *LSF) WriteTo(frame []byte) {
	copy(frame[OffsetLSF:OffsetLSF+Length], l.data[:])
}

// destCallsign and srcCallsign occupy the first twelve bytes of the LSF.
func (l *LSF) destBytes() *[6]byte { return (*[6]byte)(l.data[0:6]) }
func (l *LSF) srcBytes() *[6]byte  { return (*[6]byte)(l.data[6:12]) }

// Dest and Src give the raw 6-byte encoded destination/source callsigns,
// for callers that only need to copy or compare encodings without the
// cost of decoding to a string.
func (l *LSF) Dest() [6]byte { return *l.destBytes() }
func (l *LSF) Src() [6]byte  { return *l.srcBytes() }

// SetDestBytes / SetSrcBytes overwrite the raw encoded callsign bytes.
func (l *LSF) SetDestBytes(enc [6]byte) { copy(l.data[0:6], enc[:]) }
func (l *LSF) SetSrcBytes(enc [6]byte)  { copy(l.data[6:12], enc[:]) }

// The 2-byte type field lives at offset 12-13 (big-endian: byte 12 holds
// the high bits of CAN, byte 13 holds packet/stream, data-type,
// encryption-type, encryption-subtype and the low CAN bit), matching the
// bit layout of the original M17LSF implementation.

// PacketStreamBit returns the packet/stream flag (bit 0 of byte 13).
func (l *LSF) PacketStreamBit() byte {
	return l.data[13] & 0x01
}

// SetPacketStreamBit sets the packet/stream flag without disturbing the
// other fields in byte 13.
func (l *LSF) SetPacketStreamBit(v byte) {
	l.data[13] = (l.data[13] &^ 0x01) | (v & 0x01)
}

// DataType returns the 2-bit data-type field.
func (l *LSF) DataType() byte {
	return (l.data[13] >> 1) & 0x03
}

// SetDataType sets the 2-bit data-type field.
func (l *LSF) SetDataType(v byte) {
	l.data[13] = (l.data[13] &^ 0x06) | ((v << 1) & 0x06)
}

// EncryptionType returns the 2-bit encryption-type field.
func (l *LSF) EncryptionType() byte {
	return (l.data[13] >> 3) & 0x03
}

// SetEncryptionType sets the 2-bit encryption-type field.
func (l *LSF) SetEncryptionType(v byte) {
	l.data[13] = (l.data[13] &^ 0x18) | ((v << 3) & 0x18)
}

// EncryptionSubType returns the 2-bit encryption-subtype field.
func (l *LSF) EncryptionSubType() byte {
	return (l.data[13] >> 5) & 0x03
}

// SetEncryptionSubType sets the 2-bit encryption-subtype field.
func (l *LSF) SetEncryptionSubType(v byte) {
	l.data[13] = (l.data[13] &^ 0x60) | ((v << 5) & 0x60)
}

// CAN returns the 4-bit channel-access-number, split across the top bit
// of byte 13 and the low three bits of byte 12.
func (l *LSF) CAN() byte {
	return ((l.data[12] << 1) & 0x0E) | ((l.data[13] >> 7) & 0x01)
}

// SetCAN sets the 4-bit channel-access-number.
func (l *LSF) SetCAN(can byte) {
	l.data[13] = (l.data[13] &^ 0x80) | ((can << 7) & 0x80)
	l.data[12] = (l.data[12] &^ 0x07) | ((can >> 1) & 0x07)
}

// Meta returns the 14-byte META field.
func (l *LSF) Meta() [MetaLength]byte {
	var m [MetaLength]byte
	copy(m[:], l.data[14:14+MetaLength])
	return m
}

// SetMeta overwrites the 14-byte META field.
func (l *LSF) SetMeta(m [MetaLength]byte) {
	copy(l.data[14:14+MetaLength], m[:])
}
