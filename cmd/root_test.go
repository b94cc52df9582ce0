// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m17gateway/m17gateway/internal/config"
	"github.com/m17gateway/m17gateway/internal/logging"
)

func TestNewCommandCarriesVersion(t *testing.T) {
	t.Parallel()
	cmd := NewCommand("1.2.3", "abc1234")
	assert.Equal(t, "m17gateway", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Annotations["version"])
	assert.Equal(t, "abc1234", cmd.Annotations["commit"])

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "M17Gateway.ini", flag.DefValue)
}

func TestDisplayLevelMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		debug bool
		level uint
		want  string
	}{
		{"debug flag wins", true, 4, logging.LevelDebug},
		{"level one is debug", false, 1, logging.LevelDebug},
		{"level two is info", false, 2, logging.LevelInfo},
		{"level three is warn", false, 3, logging.LevelWarn},
		{"level four is error", false, 4, logging.LevelError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{}
			cfg.General.Debug = tt.debug
			cfg.Log.DisplayLevel = tt.level
			assert.Equal(t, tt.want, displayLevel(cfg))
		})
	}
}

func TestSetupSchedulerWithoutReloadTime(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	scheduler, err := setupScheduler(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, scheduler)
	assert.Empty(t, scheduler.Jobs())
	require.NoError(t, scheduler.Shutdown())
}

func TestStartMetricsDisabled(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	m, stop := startMetrics(cfg)
	assert.Nil(t, m)
	stop()
}
