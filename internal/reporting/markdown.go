package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Config ID | %s |\n", r.Config.ID))
	sb.WriteString(fmt.Sprintf("| Ticker | %s |\n", r.Config.Ticker))
	sb.WriteString(fmt.Sprintf("| Range | %s to %s |\n",
		formatMs(r.Config.StartMs), formatMs(r.Config.EndMs)))
	sb.WriteString(fmt.Sprintf("| Interval | %d min |\n", r.Config.IntervalMinutes))
	sb.WriteString(fmt.Sprintf("| Initial Cash | %.2f |\n", r.Config.InitialCash))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Config.Status))
	sb.WriteString(fmt.Sprintf("| Primary Metric | %s |\n", r.Config.PrimaryMetric))
	sb.WriteString(fmt.Sprintf("| Swept Parameters | %s |\n", strings.Join(r.Config.SweptParameters, ", ")))
	sb.WriteString(fmt.Sprintf("| Combinations | %d (%d succeeded, %d failed) |\n",
		r.Totals.Combinations, r.Totals.Succeeded, r.Totals.Failed))
	sb.WriteString("\n")

	// Top Results
	sb.WriteString("## Top Results\n\n")
	if len(r.TopResults) > 0 {
		metricNames := resultColumns(r)

		sb.WriteString("| Rank | Combination | Score |")
		for _, name := range metricNames {
			sb.WriteString(fmt.Sprintf(" %s |", name))
		}
		sb.WriteString("\n")
		sb.WriteString("|------|-------------|-------|")
		for range metricNames {
			sb.WriteString("------|")
		}
		sb.WriteString("\n")

		for _, row := range r.TopResults {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.6f |", row.Rank, row.CombinationKey, row.Score))
			for _, name := range metricNames {
				sb.WriteString(fmt.Sprintf(" %s |", formatMetric(row.Metrics[name])))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No eligible results.\n")
	}
	sb.WriteString("\n")

	// Heatmap
	if r.Heatmap != nil {
		sb.WriteString(fmt.Sprintf("## Heatmap: %s (%s x %s)\n\n",
			r.Heatmap.Metric, r.Heatmap.XParameter, r.Heatmap.YParameter))

		sb.WriteString(fmt.Sprintf("| %s \\ %s |", r.Heatmap.YParameter, r.Heatmap.XParameter))
		for _, xv := range r.Heatmap.XValues {
			sb.WriteString(fmt.Sprintf(" %s |", xv.String()))
		}
		sb.WriteString("\n|---|")
		for range r.Heatmap.XValues {
			sb.WriteString("---|")
		}
		sb.WriteString("\n")

		for yi, yv := range r.Heatmap.YValues {
			sb.WriteString(fmt.Sprintf("| %s |", yv.String()))
			for xi := range r.Heatmap.XValues {
				sb.WriteString(fmt.Sprintf(" %s |", formatMetric(r.Heatmap.CellAt(xi, yi).MetricValue)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")

		if r.Heatmap.Stats != nil {
			s := r.Heatmap.Stats
			sb.WriteString(fmt.Sprintf("Valid cells: %d | min %.6f | max %.6f | mean %.6f | median %.6f | stddev %.6f\n\n",
				r.Heatmap.ValidCells, s.Min, s.Max, s.Mean, s.Median, s.StdDev))
		}
	}

	// Failures
	sb.WriteString("## Failed Combinations\n\n")
	if len(r.Failures) > 0 {
		sb.WriteString("| Index | Combination | Error |\n")
		sb.WriteString("|-------|-------------|-------|\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", f.CombinationIndex, f.CombinationKey, f.Error))
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// resultColumns returns the metric column order of the results table,
// taken from the first row (all rows share the same metric set).
func resultColumns(r *Report) []string {
	primary := r.Config.PrimaryMetric
	names := []string{primary}
	if len(r.TopResults) == 0 {
		return names
	}
	seen := map[string]struct{}{primary: {}}
	for name := range r.TopResults[0].Metrics {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}
	// Stable order for the non-primary columns.
	sort.Strings(names[1:])
	return names
}

func formatMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", *v)
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
