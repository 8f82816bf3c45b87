// Package output renders audit results as fixed-width terminal tables.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

const ansiReset = "\033[0m"

// severityColors maps each severity to its ANSI prefix. INFO is never coloured.
var severityColors = map[models.Severity]string{
	models.SeverityCritical: "\033[1;31m",
	models.SeverityHigh:     "\033[0;31m",
	models.SeverityMedium:   "\033[0;33m",
	models.SeverityLow:      "\033[0;34m",
}

// TableOptions controls which columns RenderTable renders and how severity is coloured.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeRules adds a RULES column listing every rule merged into a finding.
	IncludeRules bool

	// IncludeDomain adds a DOMAIN column.
	IncludeDomain bool

	// IncludeProject adds a PROJECT column (useful when auditing many projects).
	IncludeProject bool

	// LocationLabel is the column header for the location column.
	// Defaults to "REGION".
	LocationLabel string
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-char ellipsis replaces the tail when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// column is one table column. A zero width marks the last, unpadded column.
type column struct {
	header string
	width  int
	cell   func(f models.Finding) string
}

// findingColumns returns the columns selected by opts, in display order:
//
//	RESOURCE ID  [PROJECT]  LOCATION  SEVERITY  [DOMAIN]  TYPE  MESSAGE  [RULES]
func findingColumns(opts TableOptions) []column {
	cols := []column{
		{"RESOURCE ID", 30, func(f models.Finding) string { return truncateField(f.ResourceID, 30) }},
	}
	if opts.IncludeProject {
		cols = append(cols, column{"PROJECT", 24, func(f models.Finding) string { return truncateField(f.ProjectID, 24) }})
	}
	cols = append(cols,
		column{opts.LocationLabel, 15, func(f models.Finding) string { return truncateField(f.Region, 15) }},
		column{"SEVERITY", 10, func(f models.Finding) string { return string(f.Severity) }},
	)
	if opts.IncludeDomain {
		cols = append(cols, column{"DOMAIN", 15, func(f models.Finding) string { return truncateField(f.Domain, 15) }})
	}
	cols = append(cols,
		column{"TYPE", 18, func(f models.Finding) string { return truncateField(string(f.ResourceType), 18) }},
		column{"MESSAGE", 55, func(f models.Finding) string { return ShortenMessage(f.Explanation, 55) }},
	)
	if opts.IncludeRules {
		cols = append(cols, column{"RULES", 0, ruleList})
	}
	return cols
}

// ruleList returns the merged rule IDs of f, or its own RuleID when the
// finding was produced by a single rule.
func ruleList(f models.Finding) string {
	if ids, ok := f.Metadata["rules"].([]string); ok && len(ids) > 0 {
		return strings.Join(ids, ",")
	}
	return f.RuleID
}

// pad left-aligns text in width columns. ANSI codes wrap only the text so
// trailing padding stays plain and later columns align in any terminal.
func pad(text string, width int, color string) string {
	spaces := width - len([]rune(text))
	if spaces < 0 {
		spaces = 0
	}
	if color != "" {
		text = color + text + ansiReset
	}
	if width == 0 {
		return text
	}
	return text + strings.Repeat(" ", spaces)
}

func joinRow(cells []string) string {
	return strings.TrimRight(strings.Join(cells, "  "), " ")
}

// RenderTable writes a formatted findings table to w.
// Columns are selected from opts; the separator line width is derived from
// the header row.
func RenderTable(w io.Writer, findings []models.Finding, opts TableOptions) {
	if opts.LocationLabel == "" {
		opts.LocationLabel = "REGION"
	}

	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	cols := findingColumns(opts)
	cells := make([]string, len(cols))

	for i, c := range cols {
		cells[i] = pad(c.header, c.width, "")
	}
	header := joinRow(cells)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len([]rune(header))))

	for _, f := range findings {
		for i, c := range cols {
			color := ""
			if c.header == "SEVERITY" && opts.Colored {
				color = severityColors[f.Severity]
			}
			cells[i] = pad(c.cell(f), c.width, color)
		}
		fmt.Fprintln(w, joinRow(cells))
	}
}

// RenderExcluded writes one row per project a service adapter skipped.
// Nothing is written when excluded is empty.
func RenderExcluded(w io.Writer, excluded []models.GCPExcludedProject) {
	if len(excluded) == 0 {
		return
	}

	const (
		wService = 12
		wProject = 30
		wOutcome = 18
	)
	fmt.Fprintln(w, joinRow([]string{pad("SERVICE", wService, ""), pad("PROJECT", wProject, ""), pad("OUTCOME", wOutcome, ""), "DETAIL"}))
	fmt.Fprintln(w, strings.Repeat("-", wService+wProject+wOutcome+6+len("DETAIL")))
	for _, ex := range excluded {
		detail := ex.RemediationURL
		if detail == "" {
			detail = ShortenMessage(ex.Error, 80)
		}
		fmt.Fprintln(w, joinRow([]string{
			pad(truncateField(ex.Service, wService), wService, ""),
			pad(truncateField(ex.ProjectID, wProject), wProject, ""),
			pad(ex.Outcome, wOutcome, ""),
			detail,
		}))
	}
}
