// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package config loads the gateway's INI configuration file, mirroring
// the section/key layout of the upstream C++ gateway's Conf class.
package config

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"
)

// callsignFieldWidth is the width a callsign-plus-module field is
// padded/truncated to on the wire.
const callsignFieldWidth = 9

// General holds the [General] section.
type General struct {
	Callsign   string `ini:"Callsign"`
	Suffix     string `ini:"Suffix"`
	RptAddress string `ini:"RptAddress"`
	RptPort    int    `ini:"RptPort"`
	LocalPort  int    `ini:"LocalPort"`
	Debug      bool   `ini:"Debug"`
	Daemon     bool   `ini:"Daemon"`
}

// Log holds the [Log] section.
type Log struct {
	FilePath     string `ini:"FilePath"`
	FileRoot     string `ini:"FileRoot"`
	FileLevel    uint   `ini:"FileLevel"`
	DisplayLevel uint   `ini:"DisplayLevel"`
	FileRotate   bool   `ini:"FileRotate"`
}

// Network holds the [Network] section.
type Network struct {
	Port        int    `ini:"Port"`
	HostsFile1  string `ini:"HostsFile1"`
	HostsFile2  string `ini:"HostsFile2"`
	ReloadTime  uint   `ini:"ReloadTime"`
	HangTime    uint   `ini:"HangTime"`
	Startup     string `ini:"Startup"`
	Revert      bool   `ini:"Revert"`
	Debug       bool   `ini:"Debug"`
}

// RemoteCommands holds the [Remote Commands] section.
type RemoteCommands struct {
	Enable bool `ini:"Enable"`
	Port   int  `ini:"Port"`
}

// Metrics holds the [Metrics] section, a gateway-specific addition not
// present in the upstream C++ configuration.
type Metrics struct {
	Enabled bool   `ini:"Enabled"`
	Bind    string `ini:"Bind"`
	Port    int    `ini:"Port"`
}

// Config is the fully parsed gateway configuration.
type Config struct {
	General        General
	Log            Log
	Network        Network
	RemoteCommands RemoteCommands
	Metrics        Metrics
}

// Load reads and parses an INI file at path, applying the same
// normalization rules as the upstream gateway: callsign and suffix are
// upper-cased, and the startup reflector name has underscores turned
// into spaces and is padded/truncated to callsignFieldWidth characters.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}

	cfg := &Config{
		Log:            Log{FileLevel: 2, DisplayLevel: 2},
		Network:        Network{HangTime: 60},
		RemoteCommands: RemoteCommands{Port: 6075},
	}

	if err := file.Section("General").MapTo(&cfg.General); err != nil {
		return nil, fmt.Errorf("config: [General]: %w", err)
	}
	if err := file.Section("Log").MapTo(&cfg.Log); err != nil {
		return nil, fmt.Errorf("config: [Log]: %w", err)
	}
	if err := file.Section("Network").MapTo(&cfg.Network); err != nil {
		return nil, fmt.Errorf("config: [Network]: %w", err)
	}
	if err := file.Section("Remote Commands").MapTo(&cfg.RemoteCommands); err != nil {
		return nil, fmt.Errorf("config: [Remote Commands]: %w", err)
	}
	if err := file.Section("Metrics").MapTo(&cfg.Metrics); err != nil {
		return nil, fmt.Errorf("config: [Metrics]: %w", err)
	}

	cfg.General.Callsign = strings.ToUpper(cfg.General.Callsign)
	cfg.General.Suffix = strings.ToUpper(cfg.General.Suffix)
	cfg.Network.Startup = fitCallsign(strings.ReplaceAll(cfg.Network.Startup, "_", " "))

	return cfg, nil
}

func fitCallsign(name string) string {
	if len(name) >= callsignFieldWidth {
		return name[:callsignFieldWidth]
	}
	return name + strings.Repeat(" ", callsignFieldWidth-len(name))
}
