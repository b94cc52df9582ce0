// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package lsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFrame() []byte {
	frame := make([]byte, FrameLength)
	copy(frame, Magic[:])
	return frame
}

func TestBitFieldsIndependent(t *testing.T) {
	l := LSF{}
	l.SetPacketStreamBit(1)
	l.SetDataType(3)
	l.SetEncryptionType(2)
	l.SetEncryptionSubType(1)
	l.SetCAN(0x0F)

	assert.EqualValues(t, 1, l.PacketStreamBit())
	assert.EqualValues(t, 3, l.DataType())
	assert.EqualValues(t, 2, l.EncryptionType())
	assert.EqualValues(t, 1, l.EncryptionSubType())
	assert.EqualValues(t, 0x0F, l.CAN())
}

func TestCallsignRoundTrip(t *testing.T) {
	l := LSF{}
	l.SetDestCallsign("ALL      ")
	l.SetSrcCallsign("M17-GBR A")

	assert.Equal(t, "ALL      ", l.DestCallsign())
	assert.Equal(t, "M17-GBR A", l.SrcCallsign())
}

func TestFrameNumberEOT(t *testing.T) {
	frame := newTestFrame()
	frame[OffsetFrameNo] = 0x80
	frame[OffsetFrameNo+1] = 0x05

	assert.True(t, IsEOT(frame))
	assert.EqualValues(t, 0x8005, FrameNumber(frame))
}

func TestIsNetworkFrame(t *testing.T) {
	frame := newTestFrame()
	assert.True(t, IsNetworkFrame(frame))
	assert.False(t, IsNetworkFrame(frame[:10]))

	bad := newTestFrame()
	bad[0] = 'X'
	assert.False(t, IsNetworkFrame(bad))
}

func TestMetaRoundTrip(t *testing.T) {
	l := LSF{}
	var meta [MetaLength]byte
	for i := range meta {
		meta[i] = byte(i + 1)
	}
	l.SetMeta(meta)
	assert.Equal(t, meta, l.Meta())
}

func TestFromNetworkAndWriteTo(t *testing.T) {
	frame := newTestFrame()
	l := LSF{}
	l.SetDestCallsign("ECHO")
	l.WriteTo(frame)

	decoded := FromNetwork(frame)
	assert.Equal(t, "ECHO", decoded.DestCallsign())
}
