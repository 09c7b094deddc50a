package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pevans/historybrief/pipeline"
	"github.com/pevans/historybrief/sources"
)

// printSummary prints the outcome of a run.
func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run completed:")
	fmt.Fprintf(w, "  Candidates: %d\n", s.Candidates)
	fmt.Fprintf(w, "  New items: %d\n", s.New)

	if s.Destination.ID != "" {
		fmt.Fprintf(w, "  Destination: %s\n", s.Destination.Name)
		fmt.Fprintf(w, "  Published: %d\n", s.Published.SuccessCount)
		fmt.Fprintf(w, "  Failed: %d\n", s.Published.ErrorCount)
	}

	if len(s.Sources) > 0 {
		fmt.Fprintln(w)
		for _, c := range s.Sources {
			fmt.Fprintf(w, "  %-28s %3d found  %3d new\n", c.Source, c.Candidates, c.New)
		}
	}
}

// renderSourcesTable prints the sources in a table.
func renderSourcesTable(w io.Writer, list []sources.Source) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Type", "Category", "Adapter", "Window", "Undated", "Enabled"})

	for _, src := range list {
		enabled := "yes"
		if src.Disabled {
			enabled = "no"
		}
		t.AppendRow(table.Row{
			src.Name,
			src.Type,
			src.EffectiveCategory(),
			src.Adapter,
			src.Threshold.String(),
			src.EffectiveDatePolicy(),
			enabled,
		})
	}

	t.Render()
}
