package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/deps"
	"github.com/sausix/scriptycut/internal/preflight"
	"github.com/sausix/scriptycut/internal/project"
	"github.com/sausix/scriptycut/internal/render"
	"github.com/sausix/scriptycut/internal/services"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var output string
	var dryRun bool
	var copyPayload bool
	var keepOrphans bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "render <project>",
		Short: "Render a project file",
		Long: "Render materializes every clip of the project graph into the cache, " +
			"reusing entries from earlier runs, and encodes the root clip to the output file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
				names := make([]string, 0, len(missing))
				for _, m := range missing {
					names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
				}
				return services.Wrap(services.ErrConfiguration, "cli", "check dependencies",
					"missing required tools: "+strings.Join(names, ", "), nil)
			}
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg, nil)); len(failed) > 0 {
				return fmt.Errorf("preflight %s: %s", failed[0].Name, failed[0].Detail)
			}

			file, err := project.Load(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(output)
			if target == "" {
				target = file.OutputPath()
			}
			if target == "" {
				return services.Wrap(services.ErrValidation, "cli", "render",
					"no output path: pass --output or set output in the project file", nil)
			}

			s, err := openSession(cfg, logger, sessionOptions{keepOrphans: keepOrphans, journal: !dryRun})
			if err != nil {
				return err
			}
			defer s.close()

			graph, err := project.Build(cmd.Context(), s.clips, file)
			if err != nil {
				return err
			}
			if !dryRun {
				s.discardOrphans()
			}

			var renderOpts []render.Option
			if s.journal != nil {
				renderOpts = append(renderOpts, render.WithJournal(s.journal))
			}
			r := render.New(cfg.Tools.FFmpeg, s.pool, s.probe, render.SettingsFromConfig(cfg), logger, renderOpts...)
			rep, err := r.Render(cmd.Context(), graph.Root, target, render.Options{
				DryRun: dryRun,
				Copy:   copyPayload,
				RunID:  uuid.NewString(),
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, rep)
			}
			printRenderReport(cmd.OutOrStdout(), graph.RootName, rep, dryRun)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (overrides the project's output)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the ffmpeg commands without running them")
	cmd.Flags().BoolVar(&copyPayload, "copy", false, "Copy the root clip's cached payload instead of encoding it")
	cmd.Flags().BoolVar(&keepOrphans, "keep-orphans", false, "Keep cache entries the project no longer uses")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the render report as JSON")
	return cmd
}

func printRenderReport(out io.Writer, rootName string, rep render.Report, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "Plan for %s (%d steps, %d cached):\n", rootName, rep.Steps, len(rep.Hits))
		for _, line := range rep.Planned {
			fmt.Fprintln(out, line)
		}
		return
	}
	fmt.Fprintf(out, "Rendered %s to %s\n", rootName, rep.Output)
	fmt.Fprintf(out, "Run:       %s\n", rep.RunID)
	fmt.Fprintf(out, "Nodes:     %d rendered, %d from cache\n", len(rep.Rendered), len(rep.Hits))
	fmt.Fprintf(out, "Jobs:      %d\n", len(rep.Jobs))
	fmt.Fprintf(out, "Duration:  %s\n", rep.Duration.Round(time.Millisecond))
	if rep.PayloadHash != "" {
		fmt.Fprintf(out, "Checksum:  %s\n", rep.PayloadHash)
	}
}
