package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the clip cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show clip cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			s, err := openSession(cfg, logger, sessionOptions{keepOrphans: true})
			if err != nil {
				return err
			}
			defer s.close()

			stats, err := s.cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root:    %s\n", stats.Root)
			fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
			fmt.Fprintf(out, "Size:    %s\n", humanBytes(stats.TotalBytes))
			fmt.Fprintf(out, "Disk:    %s free (%.1f%%)\n", humanBytes(int64(stats.FreeBytes)), stats.FreeRatio*100)
			printCacheEntries(out, stats.EntrySummaries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the stats as JSON")
	return cmd
}

func printCacheEntries(out io.Writer, entries []cache.EntrySummary) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached clips: none")
		return
	}
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		class := entry.Class
		if class == "" {
			class = "(unknown)"
		}
		used := "unknown"
		if !entry.LastAccess.IsZero() {
			used = entry.LastAccess.Local().Format(stampLayout)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			class,
			filepath.Base(entry.Directory),
			humanBytes(entry.SizeBytes),
			yesNo(entry.HasPayload),
			used,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Class", "Key", "Size", "Rendered", "Last used"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the clip cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			s, err := openSession(cfg, logger, sessionOptions{keepOrphans: true})
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}
}
