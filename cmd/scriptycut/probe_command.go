package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/fftools"
	"github.com/sausix/scriptycut/internal/media/ffprobe"
	"github.com/sausix/scriptycut/internal/runner"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the streams ffprobe reports for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prober := ffprobe.Prober{
				Binary:  cfg.Tools.FFprobe,
				Timeout: time.Duration(cfg.Tools.ProbeTimeout) * time.Second,
			}
			result, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err := out.Write(result.RawJSON())
				return err
			}
			fmt.Fprintf(out, "Container: %s\n", result.Format.FormatName)
			fmt.Fprintf(out, "Duration:  %s\n", formatSeconds(result.DurationSeconds()))
			if size := result.SizeBytes(); size > 0 {
				fmt.Fprintf(out, "Size:      %s\n", humanBytes(size))
			}
			rows := make([][]string, 0, len(result.Streams))
			for _, s := range result.Streams {
				detail := ""
				switch s.CodecType {
				case "video":
					detail = fmt.Sprintf("%dx%d %s @ %s", s.Width, s.Height, s.PixFmt, s.RFrameRate)
				case "audio":
					detail = fmt.Sprintf("%s Hz, %d ch", s.SampleRate, s.Channels)
				}
				rows = append(rows, []string{strconv.Itoa(s.Index), s.CodecType, s.CodecName, detail})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Type", "Codec", "Detail"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the ffprobe JSON payload")
	return cmd
}

func newCapsCommand(ctx *commandContext) *cobra.Command {
	var showFilters bool
	var showCodecs bool
	var showPixFmts bool

	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Show the filters, codecs and pixel formats ffmpeg supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			probe := fftools.NewProbe(cfg.Tools.FFmpeg, runner.New(logger), logger)
			out := cmd.OutOrStdout()

			version, err := probe.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (%s)\n", version, probe.Binary())

			all := !showFilters && !showCodecs && !showPixFmts
			if all || showFilters {
				filters, err := probe.Filters(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(filters))
				for _, name := range sortedKeys(filters) {
					f := filters[name]
					rows = append(rows, []string{name, f.Inputs + "->" + f.Outputs, f.Description})
				}
				fmt.Fprintf(out, "Filters: %d\n", len(rows))
				fmt.Fprintln(out, renderTable([]string{"Filter", "Pads", "Description"}, rows, nil))
			}
			if all || showCodecs {
				codecs, err := probe.Codecs(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(codecs))
				for _, name := range sortedKeys(codecs) {
					c := codecs[name]
					rows = append(rows, []string{name, codecMedia(c), yesNo(c.Encode), strings.Join(c.Encoders(), ", ")})
				}
				fmt.Fprintf(out, "Codecs: %d\n", len(rows))
				fmt.Fprintln(out, renderTable([]string{"Codec", "Type", "Encode", "Encoders"}, rows, nil))
			}
			if all || showPixFmts {
				formats, err := probe.PixelFormats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(formats))
				for _, name := range sortedKeys(formats) {
					p := formats[name]
					rows = append(rows, []string{name, strconv.Itoa(p.Components), strconv.Itoa(p.BitsPerPixel), yesNo(p.Output)})
				}
				fmt.Fprintf(out, "Pixel formats: %d\n", len(rows))
				fmt.Fprintln(out, renderTable([]string{"Format", "Components", "BPP", "Output"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFilters, "filters", false, "Only list filters")
	cmd.Flags().BoolVar(&showCodecs, "codecs", false, "Only list codecs")
	cmd.Flags().BoolVar(&showPixFmts, "pix-fmts", false, "Only list pixel formats")
	return cmd
}

func codecMedia(c fftools.Codec) string {
	switch {
	case c.Video:
		return "video"
	case c.Audio:
		return "audio"
	default:
		return "other"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play [file]",
		Short: "Preview a file, or ffmpeg's test pattern, in ffplay",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			result, err := fftools.Play(cmd.Context(), fftools.BinariesFromConfig(cfg), file, logger)
			if err != nil {
				return err
			}
			return result.AsError()
		},
	}
}
