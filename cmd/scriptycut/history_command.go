package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var pruneDays int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jr, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return err
			}
			defer jr.Close()

			out := cmd.OutOrStdout()
			if pruneDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := jr.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d jobs started before %s\n", removed, cutoff.Format(time.DateOnly))
				return nil
			}

			var jobs []journal.Job
			if id := strings.TrimSpace(runID); id != "" {
				jobs, err = jr.Run(cmd.Context(), id)
			} else {
				jobs, err = jr.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, jobs)
			}
			printJobs(out, jobs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show every job of one render run")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete jobs older than this many days instead of listing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print jobs as JSON")
	return cmd
}

func printJobs(out io.Writer, jobs []journal.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		exit := ""
		if job.ExitCode != nil {
			exit = strconv.Itoa(*job.ExitCode)
		}
		duration := ""
		if d := job.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			job.StartedAt.Local().Format(time.DateTime),
			shortID(job.RunID),
			job.NodeClass,
			string(job.Status),
			exit,
			duration,
			job.Error,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Started", "Run", "Class", "Status", "Exit", "Duration", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
