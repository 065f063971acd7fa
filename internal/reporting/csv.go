package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the ranked results as a CSV string. The metric columns
// follow the same order as the Markdown results table.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	metricNames := resultColumns(r)

	// Header
	sb.WriteString("rank,combination_index,combination,score")
	for _, name := range metricNames {
		sb.WriteString("," + name)
	}
	sb.WriteString("\n")

	// Rows
	for _, row := range r.TopResults {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%.6f",
			row.Rank, row.CombinationIndex, csvEscape(row.CombinationKey), row.Score))
		for _, name := range metricNames {
			if v := row.Metrics[name]; v != nil {
				sb.WriteString(fmt.Sprintf(",%.6f", *v))
			} else {
				sb.WriteString(",")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// csvEscape quotes a field containing commas. Combination keys always do.
func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
