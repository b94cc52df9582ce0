// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package logging configures the gateway's structured logger.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Level names accepted by Setup.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Setup installs a tint-formatted slog logger as the process default.
// All records go to stdout when level is debug or info, and to stderr
// when level is warn or error.
func Setup(level string) {
	var logger *slog.Logger

	switch level {
	case LevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case LevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case LevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}

	slog.SetDefault(logger)
}
