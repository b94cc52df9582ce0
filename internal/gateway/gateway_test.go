// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m17gateway/m17gateway/internal/config"
	"github.com/m17gateway/m17gateway/internal/netutil"
	"github.com/m17gateway/m17gateway/internal/reflectordb"
	"github.com/m17gateway/m17gateway/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		General: config.General{
			Callsign:   "G4KLX",
			Suffix:     "M",
			RptAddress: "127.0.0.1",
			RptPort:    17011,
			LocalPort:  0,
		},
		Network: config.Network{
			Port:     0,
			HangTime: 60,
		},
	}
}

func writeReflectorJSON(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reflectors.json")
	doc := fmt.Sprintf(`{"reflectors":[{"designator":"USA","port":%d,"ipv4":"127.0.0.1"}]}`, port)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestNewBindsSocketsAndStaysNotLinked(t *testing.T) {
	directory := reflectordb.New(writeReflectorJSON(t, 17000), "", 0)
	require.NoError(t, directory.Load())

	g, err := New(testConfig(t), directory, nil)
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, session.StateNotLinked, g.Controller().State())
}

func TestRunLinksToStartupReflector(t *testing.T) {
	reflectorPeer, err := netutil.Listen(0)
	require.NoError(t, err)
	defer reflectorPeer.Close()

	directory := reflectordb.New(writeReflectorJSON(t, reflectorPeer.LocalAddr().Port), "", 0)
	require.NoError(t, directory.Load())

	cfg := testConfig(t)
	cfg.Network.Startup = "M17-USA A"

	g, err := New(cfg, directory, nil)
	require.NoError(t, err)
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if pkt, ok := reflectorPeer.Poll(); ok {
			require.GreaterOrEqual(t, len(pkt.Data), 4)
			assert.Equal(t, "CONN", string(pkt.Data[:4]))
			break
		}
		select {
		case <-deadline:
			t.Fatal("no CONN observed from the gateway")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
