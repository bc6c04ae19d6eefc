// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/game"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/replay"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

type replayOptions struct {
	speed float64
	lead  time.Duration
}

func newReplayCmd(a *app) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   cmdReplay + " <file>",
		Short: "Replay a recorded session headlessly",
		Long: `Replays a recorded session file against a local game controller with the
recorded timing, then prints the run summary as JSON. Nothing is captured
or uploaded while the replay runs.`,
		Example: `  zeta replay run.json
  zeta replay --speed 10 run.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("speed") {
				opts.speed = a.cfg.Replay.Speed
			}
			if !cmd.Flags().Changed("lead") {
				opts.lead = a.cfg.Replay.GestureLeadTime
			}
			return runReplay(cmd.Context(), a.cfg, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "playback speed, 1 = recorded pace")
	cmd.Flags().DurationVar(&opts.lead, "lead", replay.DefaultGestureLeadTime, "synthetic gesture lead time")
	return cmd
}

// runReplay replays the session at path against a local controller and
// writes the run summary to out.
func runReplay(ctx context.Context, cfg *config.Config, path string, opts replayOptions, out io.Writer) error {
	session, err := replay.LoadFile(path)
	if err != nil {
		return err
	}

	store := prefs.NewMemoryStore()
	tel := telemetry.New(cfg, nil, store)
	controller := game.New(tel, game.Config{Screen: cfg.Telemetry.Screen})
	defer controller.Close()
	controller.ResetToResumeLevel()

	engine := replay.New(tel.Gate, controller, replay.Config{
		Pointer:         replay.NewLogPointer(logging.WithComponent("pointer")),
		Viewport:        tel,
		GestureLeadTime: opts.lead,
		Speed:           opts.speed,
		RetryIDs:        retryIDs(cfg),
		OnStep: func(step replay.Step) {
			logging.Debug().
				Int("index", step.Index).
				Int("total", step.Total).
				Str("kind", step.Kind).
				Bool("dispatched", step.Dispatched).
				Msg("Replay step")
		},
	})

	runCtx := logging.ContextWithNewCorrelationID(ctx)
	logging.Ctx(runCtx).Info().
		Str("file", path).
		Int("events", len(session.Events)).
		Float64("speed", opts.speed).
		Msg("Starting headless replay")

	if err := engine.Start(runCtx, session); err != nil {
		return err
	}
	if err := engine.Wait(ctx); err != nil {
		engine.Stop()
		logging.Ctx(runCtx).Info().Msg("Replay interrupted")
	}

	summary := engine.Summary()
	logging.Ctx(runCtx).Info().
		Str("state", summary.State).
		Int("dispatched", summary.Dispatched).
		Int("skipped", summary.Skipped).
		Dur("wall_duration", summary.WallDuration).
		Msg("Replay finished")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
