// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spexia/cmd"
	"spexia/internal/app"
	"spexia/internal/audio"
	"spexia/internal/backend"
	"spexia/internal/config"
	applog "spexia/internal/log"
	"spexia/internal/tui"
	"spexia/pkg/build"
)

// main is the entry point for the spectral analysis service.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Open the audio backend
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start capture on the default device
//   - Analyze on the pipeline worker
//   - Publish frames and supervise the device from the consumer loop
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop capture, drain analysis, close transports
func main() {
	if err := run(); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	if options.Command == "" {
		return nil // Help or version was printed.
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return err
	}
	if err := applyOptions(cfg, options); err != nil {
		return err
	}

	applog.SetLevel(cfg.Level())
	if err := applog.EnableFile(applog.FileOptions{
		Path:       cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
	}); err != nil {
		return err
	}
	defer applog.Close()

	host, err := backend.Open(cfg.Audio.Backend, backend.Options{
		StallTimeout: cfg.Audio.StallTimeout,
		LowLatency:   cfg.Audio.LowLatency,
	})
	if err != nil {
		return err
	}
	defer host.Close()

	// Handle one-off commands that don't need the capture pipeline.
	if options.Command == cmd.CommandList {
		return executeList(host, cfg, options.Interactive)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := app.New(cfg, host, app.Options{})
	if err != nil {
		return err
	}

	info := build.GetBuildFlags()
	applog.Infof("%s %s running (%s backend, %d/%d window/stride). Ctrl+C to stop.",
		info.Name, info.Version, host.Name(), cfg.Analysis.WindowSize, cfg.Analysis.Stride)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// Run blocks until a termination signal, then shuts down in order.
	return session.Run(ctx)
}

// applyOptions applies command line overrides on top of the loaded config.
func applyOptions(cfg *config.Config, options *cmd.Options) error {
	if options.Backend != "" {
		cfg.Audio.Backend = options.Backend
	}
	if options.Direction != "" {
		cfg.Audio.Direction = options.Direction
	}
	if options.Verbose {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid command line options: %w", err)
	}
	return nil
}

// executeList prints the host's devices, or browses them interactively.
func executeList(host audio.Host, cfg *config.Config, interactive bool) error {
	if !interactive {
		return audio.ListDevices(os.Stdout, host)
	}
	dir, err := audio.ParseDirection(cfg.Audio.Direction)
	if err != nil {
		return err
	}
	return tui.StartDeviceListUI(host, dir)
}
