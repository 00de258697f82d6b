package main

import (
	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/deps"
	"github.com/sausix/scriptycut/internal/fftools"
	"github.com/sausix/scriptycut/internal/preflight"
	"github.com/sausix/scriptycut/internal/runner"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check tools, encoders and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			w := newStatusWriter(cmd.OutOrStdout())

			statuses := preflight.CheckSystemDeps(cfg)
			w.section("tools")
			for _, s := range statuses {
				w.tool(s)
			}

			var enc preflight.Encoders
			if len(deps.Missing(statuses)) == 0 {
				enc = fftools.NewProbe(cfg.Tools.FFmpeg, runner.New(logger), logger)
			}
			w.section("checks")
			for _, r := range preflight.RunAll(cmd.Context(), cfg, enc) {
				w.check(r)
			}

			w.section("cache")
			store, err := cache.Open(cfg.Paths.CacheDir, cache.Options{Version: cfg.Cache.FormatVersion}, nil)
			if err != nil {
				w.line("Cache", stateFail, err.Error())
				return nil
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				w.line("Cache", stateFail, err.Error())
				return nil
			}
			w.cache(stats, cfg.Cache.DiscardOrphans)
			return nil
		},
	}
}
