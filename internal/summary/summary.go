// Package summary builds audit_summary.json and allfiles.md, the two
// facts-only roll-ups a run leaves behind once every phase has
// finished: a per-phase metrics breakdown with an overall severity
// verdict, and a plain-text index of every artifact produced
// (grounded in the original summary command's phase-by-phase metrics
// extraction and the pipeline's allfiles generation).
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pfaudit/pipeline/internal/artifacts"
)

// SeverityCounts tallies findings across every phase that reports
// severities, feeding the overall status decision.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

func (s SeverityCounts) total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Info
}

func (s *SeverityCounts) add(other SeverityCounts) {
	s.Critical += other.Critical
	s.High += other.High
	s.Medium += other.Medium
	s.Low += other.Low
	s.Info += other.Info
}

// KeyStatistics is the summary's top-level rollup across every phase
// that reported anything.
type KeyStatistics struct {
	TotalFindings      int `json:"total_findings"`
	PhasesWithFindings int `json:"phases_with_findings"`
	TotalPhasesRun     int `json:"total_phases_run"`
}

// AuditSummary is the shape written to raw/audit_summary.json.
type AuditSummary struct {
	GeneratedAt             time.Time              `json:"generated_at"`
	OverallStatus           string                 `json:"overall_status"`
	TotalRuntimeSeconds     float64                `json:"total_runtime_seconds"`
	TotalFindingsBySeverity SeverityCounts         `json:"total_findings_by_severity"`
	MetricsByPhase          map[string]interface{} `json:"metrics_by_phase"`
	KeyStatistics           KeyStatistics          `json:"key_statistics"`
}

func loadJSON(path string) (map[string]interface{}, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}

func severityOf(finding map[string]interface{}, field, fallback string) string {
	if v, ok := finding[field].(string); ok && v != "" {
		return strings.ToLower(v)
	}
	return fallback
}

func asList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return nil
}

func tallyBySeverity(findings []interface{}, field, fallback string) SeverityCounts {
	var counts SeverityCounts
	for _, f := range findings {
		m, ok := f.(map[string]interface{})
		if !ok {
			continue
		}
		switch severityOf(m, field, fallback) {
		case "critical":
			counts.Critical++
		case "high":
			counts.High++
		case "medium":
			counts.Medium++
		case "low":
			counts.Low++
		case "info":
			counts.Info++
		}
	}
	return counts
}

// Build reads whichever raw artifacts are present and assembles the
// audit summary. A phase whose artifact is absent or unreadable is
// simply omitted from metrics_by_phase rather than failing the build.
func Build(store *artifacts.Store, timing *artifacts.Timing, now time.Time) *AuditSummary {
	summary := &AuditSummary{
		GeneratedAt:   now,
		OverallStatus: "UNKNOWN",
		MetricsByPhase: map[string]interface{}{},
	}

	if deps, ok := loadJSON(filepath.Join(store.RawDir(), "deps.json")); ok {
		summary.MetricsByPhase["dependencies"] = map[string]interface{}{
			"total_dependencies": len(asList(deps["dependencies"])),
			"vulnerabilities":    len(asList(deps["vulnerabilities"])),
		}
	}

	if lint, ok := loadJSON(filepath.Join(store.RawDir(), "lint.json")); ok {
		findings := asList(lint["findings"])
		if findings != nil {
			bySev := tallyBySeverity(findings, "severity", "info")
			summary.MetricsByPhase["lint"] = map[string]interface{}{
				"total_issues": len(findings),
				"by_severity":  bySev,
			}
			summary.TotalFindingsBySeverity.add(bySev)
		}
	}

	patterns, ok := loadJSON(filepath.Join(store.RawDir(), "detect_patterns.json"))
	if !ok {
		patterns, ok = loadJSON(filepath.Join(store.RawDir(), "findings.json"))
	}
	if ok {
		findings := asList(patterns["findings"])
		if findings != nil {
			bySev := tallyBySeverity(findings, "severity", "info")
			summary.MetricsByPhase["patterns"] = map[string]interface{}{
				"total_patterns_matched": len(findings),
				"by_severity":            bySev,
			}
			summary.TotalFindingsBySeverity.add(bySev)
		}
	}

	if graph, ok := loadJSON(filepath.Join(store.RawDir(), "graph_analysis.json")); ok {
		summary.MetricsByPhase["graph"] = map[string]interface{}{
			"cycles_detected":      len(asList(graph["cycles"])),
			"hotspots_identified":  len(asList(graph["hotspots"])),
		}
	}

	if taint, ok := loadJSON(filepath.Join(store.RawDir(), "taint_analysis.json")); ok {
		taintPaths := asList(taint["taint_paths"])
		bySev := tallyBySeverity(taintPaths, "severity", "medium")
		totalVulns := 0
		if n, ok := taint["total_vulnerabilities"].(float64); ok {
			totalVulns = int(n)
		}
		summary.MetricsByPhase["taint_analysis"] = map[string]interface{}{
			"taint_paths_found":     len(taintPaths),
			"total_vulnerabilities": totalVulns,
			"by_severity":           bySev,
		}
		summary.TotalFindingsBySeverity.add(bySev)
	}

	if fce, ok := loadJSON(filepath.Join(store.RawDir(), "fce.json")); ok {
		correlations, _ := fce["correlations"].(map[string]interface{})
		hotspots := 0
		if v, ok := correlations["total_hotspots"].(float64); ok {
			hotspots = int(v)
		}
		summary.MetricsByPhase["fce"] = map[string]interface{}{
			"total_findings":       len(asList(fce["all_findings"])),
			"hotspots_correlated":  hotspots,
			"factual_clusters":     len(asList(correlations["factual_clusters"])),
		}
	}

	switch {
	case summary.TotalFindingsBySeverity.Critical > 0:
		summary.OverallStatus = "CRITICAL"
	case summary.TotalFindingsBySeverity.High > 0:
		summary.OverallStatus = "HIGH"
	case summary.TotalFindingsBySeverity.Medium > 0:
		summary.OverallStatus = "MEDIUM"
	case summary.TotalFindingsBySeverity.Low > 0:
		summary.OverallStatus = "LOW"
	default:
		summary.OverallStatus = "CLEAN"
	}

	phasesWithFindings := 0
	for _, v := range summary.MetricsByPhase {
		if v != nil {
			phasesWithFindings++
		}
	}
	summary.KeyStatistics = KeyStatistics{
		TotalFindings:      summary.TotalFindingsBySeverity.total(),
		PhasesWithFindings: phasesWithFindings,
		TotalPhasesRun:     len(summary.MetricsByPhase),
	}

	if timing != nil {
		var total time.Duration
		for _, e := range timing.Entries {
			if !e.End.IsZero() {
				total += e.End.Sub(e.Start)
			}
		}
		summary.TotalRuntimeSeconds = total.Seconds()
	}

	return summary
}

// Write marshals and atomically writes the audit summary to
// raw/audit_summary.json.
func Write(store *artifacts.Store, s *AuditSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling audit summary: %w", err)
	}
	return artifacts.WriteFileAtomic(store.AuditSummaryPath(), data, 0644)
}

// WriteAllFiles writes allfiles.md: a grouped-by-directory listing of
// every file the run produced (raw/ and readthis/) with byte sizes,
// per-directory totals, and a total duration that is the sum of the
// recorded phase durations (overlapping parallel phases are each
// counted in full, so it is not the wall-clock run time), letting a human
// or an AI consumer see at a glance what the run produced without
// opening audit_summary.json.
func WriteAllFiles(store *artifacts.Store, timing *artifacts.Timing) error {
	rawNames, err := store.ListRawArtifacts()
	if err != nil {
		return fmt.Errorf("listing raw artifacts: %w", err)
	}
	sort.Strings(rawNames)

	readthisNames, err := store.ListReadThisArtifacts()
	if err != nil {
		return fmt.Errorf("listing readthis artifacts: %w", err)
	}
	sort.Strings(readthisNames)

	var b strings.Builder
	b.WriteString("# Run artifacts\n\n")

	b.WriteString("## raw/\n\n")
	var rawTotal int64
	for _, name := range rawNames {
		size, err := store.ArtifactSize(name)
		if err != nil {
			continue
		}
		rawTotal += size
		fmt.Fprintf(&b, "- raw/%s (%d bytes)\n", name, size)
	}
	fmt.Fprintf(&b, "\n%d files, %d bytes total\n\n", len(rawNames), rawTotal)

	b.WriteString("## readthis/\n\n")
	var readthisTotal int64
	for _, name := range readthisNames {
		size, err := store.ReadThisArtifactSize(name)
		if err != nil {
			continue
		}
		readthisTotal += size
		fmt.Fprintf(&b, "- readthis/%s (%d bytes)\n", name, size)
	}
	fmt.Fprintf(&b, "\n%d files, %d bytes total\n", len(readthisNames), readthisTotal)

	if timing != nil {
		var total time.Duration
		for _, e := range timing.Entries {
			if !e.End.IsZero() {
				total += e.End.Sub(e.Start)
			}
		}
		m := int(total.Minutes())
		s := int(total.Seconds()) % 60
		fmt.Fprintf(&b, "\nTotal run duration: %dm %02ds\n", m, s)
	}

	return artifacts.WriteFileAtomic(store.AllFilesPath(), []byte(b.String()), 0644)
}
