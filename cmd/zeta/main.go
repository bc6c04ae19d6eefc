// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package main is the zeta command.
//
// # Subcommands
//
//	zeta [serve]                              run the game, telemetry and local API
//	zeta replay [--speed 1.0] <file>          replay a recorded session headlessly
//	zeta autoplay --levels 5 --out run.json   play offline and export the recording
//
// # Configuration
//
// A .env file in the working directory is loaded first, then configuration
// is read with Koanf v2 (defaults, config.yaml, environment). See
// internal/config for the variable names.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. serve stops the supervisor
// tree and waits for services to exit; replay stops the engine, which
// returns the gate to capturing.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
)

const (
	cmdServe    = "serve"
	cmdReplay   = "replay"
	cmdAutoplay = "autoplay"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("Failed to load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		logging.Fatal().Err(err).Msg("Command failed")
	}
}

// app carries the loaded configuration to subcommands.
type app struct {
	cfg *config.Config
}

// newRootCmd builds the command tree. Running zeta without a subcommand serves.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "zeta",
		Short: "Behaviour telemetry and session replay for the shape puzzle",
		Long: `zeta runs the shape puzzle with behaviour capture, batched upload to the
collector, and deterministic replay of recorded sessions.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newReplayCmd(a),
		newAutoplayCmd(a),
	)
	return root
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   cmdServe,
		Short: "Run the game, telemetry and local API under supervision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

// load reads configuration and initializes logging before any subcommand runs.
func (a *app) load(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	watchLogLevel()
	a.cfg = cfg
	return nil
}

// watchLogLevel re-reads the config file on change and applies its log
// level. Everything else needs a restart.
func watchLogLevel() {
	path := os.Getenv(config.ConfigPathEnvVar)
	if path == "" {
		for _, p := range config.DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		return
	}

	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

// retryIDs returns the configured retry object id followed by the built-in aliases.
func retryIDs(cfg *config.Config) []string {
	ids := []string{}
	for _, id := range []string{cfg.Replay.RetryObjectID, "retry_button", "retry"} {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
