package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/project"
	"github.com/sausix/scriptycut/internal/render"
)

// inspectRow is one node of the graph, dependencies first.
type inspectRow struct {
	Name     string  `json:"name,omitempty"`
	Class    string  `json:"class"`
	Identity string  `json:"identity"`
	Flags    string  `json:"flags"`
	Duration float64 `json:"duration"`
	Size     string  `json:"size,omitempty"`
	Key      string  `json:"key"`
	Cached   bool    `json:"cached"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <project>",
		Short: "Show the clip graph of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.environment()
			if err != nil {
				return err
			}
			file, err := project.Load(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cfg, logger, sessionOptions{keepOrphans: true})
			if err != nil {
				return err
			}
			defer s.close()

			graph, err := project.Build(cmd.Context(), s.clips, file)
			if err != nil {
				return err
			}
			rows := inspectRows(graph)
			if jsonOut {
				return writeJSON(cmd, rows)
			}
			printInspect(cmd.OutOrStdout(), graph, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the graph as JSON")
	return cmd
}

func inspectRows(graph *project.Graph) []inspectRow {
	names := make(map[string]string, len(graph.Named))
	for name, c := range graph.Named {
		key := c.Entry().Key
		if prev, ok := names[key]; !ok || name < prev {
			names[key] = name
		}
	}
	var rows []inspectRow
	for c := range clip.Dependencies(graph.Root) {
		row := inspectRow{
			Name:     names[c.Entry().Key],
			Class:    c.Class(),
			Identity: c.Identity(),
			Flags:    c.Flags().String(),
			Duration: c.Duration(),
			Key:      c.Entry().Key,
			Cached:   render.Cached(c),
		}
		if size, ok := c.Resolution(); ok {
			row.Size = size.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func printInspect(out io.Writer, graph *project.Graph, rows []inspectRow) {
	fmt.Fprintf(out, "Root: %s (%s, %s)\n", graph.RootName, graph.Root.Class(), formatSeconds(graph.Root.Duration()))
	if master, ok := clip.Master(graph.Root); ok {
		fmt.Fprintf(out, "Master: %s\n", master.Identity())
	}
	tableRows := make([][]string, 0, len(rows))
	for i, row := range rows {
		tableRows = append(tableRows, []string{
			strconv.Itoa(i + 1),
			row.Name,
			row.Class,
			formatSeconds(row.Duration),
			row.Size,
			row.Flags,
			yesNo(row.Cached),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Name", "Class", "Duration", "Size", "Flags", "Cached"},
		tableRows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}
