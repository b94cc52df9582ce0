// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package echo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m17gateway/m17gateway/internal/lsf"
)

func TestRecordHoldPlay(t *testing.T) {
	e := New(5)
	require.Equal(t, StateNone, e.State())

	frame := make([]byte, lsf.FrameLength)
	frame[0] = 'M'
	require.True(t, e.Write(frame))
	assert.Equal(t, StateRecording, e.State())

	e.End()
	assert.Equal(t, StateWaiting, e.State())

	e.Clock(999)
	assert.Equal(t, StateWaiting, e.State())

	e.Clock(1)
	assert.Equal(t, StatePlaying, e.State())
}

func TestPlaybackPacing(t *testing.T) {
	e := New(5)
	frame := make([]byte, lsf.FrameLength)
	for i := 0; i < 10; i++ {
		frame[0] = byte(i)
		require.True(t, e.Write(frame))
	}
	e.End()
	e.Clock(1000)
	require.Equal(t, StatePlaying, e.State())

	out := make([]byte, lsf.FrameLength)
	received := 0
	for tick := 0; tick < 25; tick++ {
		e.Clock(40)
		for {
			r := e.Read(out)
			if r != ReadData {
				break
			}
			received++
		}
	}
	assert.Equal(t, 10, received)
}

func TestWriteRejectsWhenFull(t *testing.T) {
	e := New(0)
	frame := make([]byte, lsf.FrameLength)
	assert.False(t, e.Write(frame))
}

func TestReadEndWhenEmpty(t *testing.T) {
	e := New(5)
	e.End()
	e.Clock(1000)
	out := make([]byte, lsf.FrameLength)
	assert.Equal(t, ReadEnd, e.Read(out))
	assert.Equal(t, StateNone, e.State())
}

func TestClear(t *testing.T) {
	e := New(5)
	frame := make([]byte, lsf.FrameLength)
	e.Write(frame)
	e.End()
	e.Clock(1000)
	e.Clear()
	assert.Equal(t, StateNone, e.State())

	out := make([]byte, lsf.FrameLength)
	assert.Equal(t, ReadNone, e.Read(out))
}
