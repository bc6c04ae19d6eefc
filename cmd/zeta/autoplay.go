// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/game"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/recorder"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

// offlineContext identifies offline recordings. They have no assigned user id.
type offlineContext struct {
	device telemetry.DeviceInfo
}

func (o offlineContext) Device() telemetry.DeviceInfo { return o.device }

func (offlineContext) UserID() string { return "" }

type autoplayOptions struct {
	levels   int
	out      string
	think    time.Duration
	mistakes float64
	seed     uint64
}

func newAutoplayCmd(a *app) *cobra.Command {
	var opts autoplayOptions

	cmd := &cobra.Command{
		Use:   cmdAutoplay,
		Short: "Play levels offline and export the recording",
		Long: `Plays levels on a virtual clock, tapping shape buttons like a player would,
and exports every captured behaviour as a recorded session file that
"zeta replay" and POST /api/v1/replay accept. Nothing is uploaded.`,
		Example: `  zeta autoplay --levels 5 --out run.json
  zeta autoplay --mistakes 0.3 --seed 42 > run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.levels <= 0 {
				return fmt.Errorf("--levels must be positive, got %d", opts.levels)
			}
			rec, err := autoplay(cmd.Context(), a.cfg, opts)
			if err != nil {
				return err
			}
			if opts.out == "-" {
				return rec.ExportJSON(cmd.OutOrStdout())
			}
			if err := rec.ExportFile(opts.out); err != nil {
				return err
			}
			logging.Info().Str("file", opts.out).Int("events", rec.Len()).Msg("Recording written")
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.levels, "levels", 3, "levels to complete")
	cmd.Flags().StringVar(&opts.out, "out", "-", "output file, - for stdout")
	cmd.Flags().DurationVar(&opts.think, "think", 600*time.Millisecond, "pause between taps")
	cmd.Flags().Float64Var(&opts.mistakes, "mistakes", 0.1, "probability of a wrong tap")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")
	return cmd
}

// autoplay plays opts.levels levels on a virtual clock and returns the
// recorder holding every captured behaviour.
func autoplay(ctx context.Context, cfg *config.Config, opts autoplayOptions) (*recorder.Recorder, error) {
	captureCfg := *cfg
	captureCfg.Telemetry.BehaviourEnabled = true

	device := telemetry.DeviceInfoFromConfig(&captureCfg.Telemetry)
	rec := recorder.New(offlineContext{device: device}, cfg.Collector.ProjectID)

	vc := clock.NewVirtual(time.Now().UTC().Truncate(time.Millisecond))
	tel := telemetry.New(&captureCfg, nil, prefs.NewMemoryStore(),
		telemetry.WithClock(vc),
		telemetry.WithPublisher(rec),
		telemetry.WithDeviceInfo(device),
	)
	controller := game.New(tel, game.Config{Clock: vc, Screen: cfg.Telemetry.Screen})
	defer controller.Close()
	controller.ResetToResumeLevel()

	player := game.NewAutoplayer(controller, controller, game.AutoplayConfig{
		Clock:       vc,
		Think:       opts.think,
		MistakeRate: opts.mistakes,
		Seed:        opts.seed,
	})

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.think > 0 {
		go advancePauses(playCtx, vc, opts.think)
	}

	completed, err := player.Play(playCtx, opts.levels)
	if err != nil {
		return nil, fmt.Errorf("autoplay stopped after %d levels: %w", completed, err)
	}
	logging.Info().Int("levels", completed).Int("events", rec.Len()).Msg("Autoplay finished")
	return rec, nil
}

// advancePauses moves the virtual clock past each pause as soon as the
// player starts waiting, so recorded timestamps are spaced by think.
func advancePauses(ctx context.Context, vc *clock.Virtual, think time.Duration) {
	for {
		if err := vc.BlockUntil(ctx, 1); err != nil {
			return
		}
		vc.Advance(think)
	}
}
