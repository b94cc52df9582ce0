// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package voiceprompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullProducerNeverBusy(t *testing.T) {
	var p NullProducer
	p.Start()
	p.LinkedTo("M17-GBR A")
	p.Unlinked()
	p.Clock(1000)

	assert.False(t, p.IsBusy())

	frame := make([]byte, frameLength)
	assert.False(t, p.Read(frame))
}
