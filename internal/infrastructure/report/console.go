package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"NewsPipeline/internal/domain"
)

const maxErrorWidth = 80

// PrintSummary renders per-stage counts and, when present, the failure list.
func PrintSummary(w io.Writer, result domain.WorkflowResult, artifact string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(summaryTitle(result))
	t.AppendHeader(table.Row{"Stage", "Attempted", "Succeeded", "Failed", "Skipped", "Duplicate"})

	c := result.Collection
	t.AppendRow(table.Row{"collection", c.Collected + c.Blocked + c.Stale + c.Duplicates, c.Forwarded,
		c.SourcesFailed, c.Blocked + c.Stale + c.FilteredOut, c.Duplicates})
	for _, s := range []struct {
		name   string
		counts domain.StageCounts
	}{
		{string(domain.StageExtraction), result.Extraction},
		{string(domain.StageSummarization), result.Summarization},
		{string(domain.StagePublication), result.Publication},
	} {
		t.AppendRow(table.Row{s.name, s.counts.Attempted, s.counts.Succeeded, s.counts.Failed, s.counts.Skipped, s.counts.Duplicate})
	}
	t.AppendFooter(table.Row{"elapsed", fmt.Sprintf("%.1fs", result.ElapsedSeconds), "published", len(result.Published), "failures", result.FailureCount()})
	t.Render()

	if result.FailureCount() > 0 {
		printFailures(w, result)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	if artifact != "" {
		fmt.Fprintf(w, "Result written to %s\n", artifact)
	}
}

func printFailures(w io.Writer, result domain.WorkflowResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Failures")
	t.AppendHeader(table.Row{"Stage", "URL", "Error"})

	stages := make([]string, 0, len(result.Failures))
	for stage := range result.Failures {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)

	for _, stage := range stages {
		for _, f := range result.Failures[domain.Stage(stage)] {
			t.AppendRow(table.Row{stage, f.URL, truncate(f.Error, maxErrorWidth)})
		}
	}
	t.Render()
}

func summaryTitle(result domain.WorkflowResult) string {
	title := "Run " + result.RunID
	if result.DryRun {
		title += " (dry run)"
	}
	return title
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
