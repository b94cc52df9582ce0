// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package metrics_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m17gateway/m17gateway/internal/metrics"
)

func TestServerPortInUseReturnsError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr := listener.Addr().String()

	s := metrics.NewServer(addr)
	err = s.Start()
	assert.Error(t, err)
}
