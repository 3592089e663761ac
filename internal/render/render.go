// Package render serializes triage reports to disk and to human-readable
// markdown.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/faultlinehq/faultline/internal/models"
)

// WriteReportJSON writes the report as 2-space indented JSON with a trailing
// newline, creating parent directories as needed.
func WriteReportJSON(report *models.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the report as sectioned markdown. Optional values
// that are unset are left out rather than printed empty.
func RenderMarkdown(report *models.Report) string {
	var lines []string

	lines = append(lines, "## faultline report", "")

	lines = append(lines, "### Meta")
	lines = append(lines, kv("seed_type", string(report.Meta.SeedType)))
	lines = append(lines, kv("generated_at", report.Meta.GeneratedAt))
	lines = append(lines, kv("dd_site", report.Meta.Site))
	lines = append(lines, "")

	lines = append(lines, "### Time windows")
	lines = append(lines, kv("incident_start", report.Windows.Incident.Start))
	lines = append(lines, kv("incident_end", report.Windows.Incident.End))
	lines = append(lines, kv("baseline_start", report.Windows.Baseline.Start))
	lines = append(lines, kv("baseline_end", report.Windows.Baseline.End))
	lines = append(lines, "")

	lines = append(lines, "### Scope")
	lines = appendScope(lines, report.Scope)
	lines = append(lines, "")

	lines = append(lines, "### Symptoms")
	for _, s := range report.Symptoms {
		lines = append(lines, fmt.Sprintf("- **%s**: `%s`", s.Type, s.QueryOrSignature))
		if s.BaselineValue != nil || s.IncidentValue != nil {
			lines = append(lines, "  - baseline: "+formatOptFloat(s.BaselineValue))
			lines = append(lines, "  - incident: "+formatOptFloat(s.IncidentValue))
		}
		if s.PercentChange != nil {
			lines = append(lines, fmt.Sprintf("  - change: %.2f%%", *s.PercentChange))
		}
		if s.PeakTS != nil {
			lines = append(lines, fmt.Sprintf("  - peak: %s @ %s", formatOptFloat(s.PeakValue), *s.PeakTS))
		}
	}
	lines = append(lines, "")

	lines = append(lines, "### Top candidates")
	candidates := report.Findings.Candidates
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- **%s** (score %s): %s", c.Kind, formatFloat(c.Score), c.Title))
	}
	lines = append(lines, "")

	lines = append(lines, "### Events")
	events := report.Findings.Events
	if len(events) > 20 {
		events = events[:20]
	}
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", e.TS, e.Title))
	}
	lines = append(lines, "")

	if len(report.Recommendations) > 0 {
		lines = append(lines, "### Recommendations")
		for _, r := range report.Recommendations {
			lines = append(lines, "- "+r)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func appendScope(lines []string, sc models.ScopeInfo) []string {
	if sc.Service != nil {
		lines = append(lines, kv("service", *sc.Service))
	}
	if sc.Environment != nil {
		lines = append(lines, kv("environment", *sc.Environment))
	}
	if sc.Region != nil {
		lines = append(lines, kv("region", *sc.Region))
	}
	if sc.Cluster != nil {
		lines = append(lines, kv("cluster", *sc.Cluster))
	}
	if len(sc.Hosts) > 0 {
		lines = append(lines, kv("hosts", strings.Join(sc.Hosts, ", ")))
	}
	if len(sc.Pods) > 0 {
		lines = append(lines, kv("pods", strings.Join(sc.Pods, ", ")))
	}
	if len(sc.TagFilters) > 0 {
		keys := make([]string, 0, len(sc.TagFilters))
		for k := range sc.TagFilters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+":"+sc.TagFilters[k])
		}
		lines = append(lines, kv("tag_filters", strings.Join(pairs, ", ")))
	}
	return lines
}

func kv(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return formatFloat(*v)
}
