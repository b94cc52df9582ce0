// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package cmd wires the gateway's command-line surface: configuration
// loading, logging, the reload scheduler, metrics, signal handling and
// the SIGHUP hot-restart loop around the gateway itself.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/m17gateway/m17gateway/internal/config"
	"github.com/m17gateway/m17gateway/internal/gateway"
	"github.com/m17gateway/m17gateway/internal/logging"
	"github.com/m17gateway/m17gateway/internal/metrics"
	"github.com/m17gateway/m17gateway/internal/reflectordb"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "m17gateway",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringP("config", "c", "M17Gateway.ini", "path to the INI configuration file")
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	fmt.Printf("M17Gateway - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read the config flag: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	setupLogger(cfg)

	if cfg.General.Daemon {
		slog.Info("daemon mode is delegated to the service manager; continuing in the foreground")
	}

	metricsRegistry, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	// One gateway instance per pass; SIGHUP tears the instance down,
	// re-reads the configuration and builds a fresh one.
	for {
		restart, err := runGateway(cmd.Context(), cfg, metricsRegistry)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}

		slog.Info("restarting after SIGHUP")
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		setupLogger(cfg)
	}
}

// runGateway runs one gateway instance until a termination signal or
// parent-context cancellation, reporting whether a SIGHUP asked for a
// hot restart rather than a shutdown.
func runGateway(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (bool, error) {
	directory := reflectordb.New(cfg.Network.HostsFile1, cfg.Network.HostsFile2, 0)
	if err := directory.Load(); err != nil {
		return false, fmt.Errorf("failed to load the reflector directory: %w", err)
	}

	scheduler, err := setupScheduler(cfg, directory)
	if err != nil {
		return false, err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("failed to stop the reload scheduler", "error", err)
		}
	}()

	g, err := gateway.New(cfg, directory, m)
	if err != nil {
		return false, err
	}
	defer g.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(runCtx)
	}()

	restart := false
	select {
	case sig := <-sigCh:
		slog.Info("received signal", "signal", sig)
		restart = sig == syscall.SIGHUP
	case <-ctx.Done():
	}

	cancel()
	<-done
	return restart, nil
}

// setupLogger configures the structured logger from the [Log] section,
// with [General] Debug forcing the most verbose level.
func setupLogger(cfg *config.Config) {
	logging.Setup(displayLevel(cfg))
}

func displayLevel(cfg *config.Config) string {
	if cfg.General.Debug {
		return logging.LevelDebug
	}
	switch {
	case cfg.Log.DisplayLevel <= 1:
		return logging.LevelDebug
	case cfg.Log.DisplayLevel == 2:
		return logging.LevelInfo
	case cfg.Log.DisplayLevel == 3:
		return logging.LevelWarn
	default:
		return logging.LevelError
	}
}

// setupScheduler creates the wall-clock scheduler that periodically
// reloads the reflector directory, keeping blocking name resolution
// out of the gateway's event loop.
func setupScheduler(cfg *config.Config, directory *reflectordb.Directory) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if cfg.Network.ReloadTime > 0 {
		_, err = scheduler.NewJob(
			gocron.DurationJob(time.Duration(cfg.Network.ReloadTime)*time.Minute),
			gocron.NewTask(func() {
				if err := directory.Load(); err != nil {
					slog.Warn("reflector directory reload failed, keeping previous list", "error", err)
				}
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule the reflector directory reload: %w", err)
		}
	}

	return scheduler, nil
}

// startMetrics creates the Prometheus registry and serves it when the
// [Metrics] section enables it. The registry outlives hot restarts so
// counters are never re-registered.
func startMetrics(cfg *config.Config) (*metrics.Metrics, func()) {
	if !cfg.Metrics.Enabled {
		return nil, func() {}
	}

	m := metrics.New()
	server := metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Metrics.Bind, cfg.Metrics.Port))
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			slog.Error("failed to stop the metrics server", "error", err)
		}
	}
}
