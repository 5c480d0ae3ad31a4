package schemas

import (
	"fmt"
	"time"
)

// -- Finding Schemas --

// Severity represents the severity tier of a scan finding. The values are
// lowercase to keep the wire format stable across consumers.
type Severity string

// Constants defining the standard severity tiers for findings.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank maps each tier to its ordinal position on the scale
// low < medium < high < critical. Info sits below low and is only ever
// emitted, never used as a threshold.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity validates a severity string from the boundary.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unrecognized severity %q", s)
	}
	return sev, nil
}

// Rank returns the tier's position on the ordinal scale.
func (s Severity) Rank() int { return severityRank[s] }

// AtLeast reports whether the severity meets or exceeds the given threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityRank[s] >= severityRank[threshold]
}

// Finding is a single heuristic signal reported by a scan: a code smell, a
// suspicious construct, an unused symbol, a duplicate block. Findings are
// advisory, not verdicts; Confidence says how sure the detector is.
type Finding struct {
	ID       string `json:"id"`
	Category string `json:"category"` // detector category, e.g. "security", "performance"
	Rule     string `json:"rule"`     // detector rule name within the category

	ObservedAt time.Time `json:"observed_at"`

	File string `json:"file"`
	Span Span   `json:"span"`

	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"` // [0,1]
	Description string   `json:"description"`

	// Indicators lists the concrete evidence the detector matched, e.g. the
	// offending source excerpt or the pattern vocabulary that fired.
	Indicators []string `json:"indicators,omitempty"`

	Recommendation string `json:"recommendation,omitempty"`

	// OWASP and CVSSScore are populated by security detectors only.
	OWASP     string  `json:"owasp,omitempty"`
	CVSSScore float64 `json:"cvss_score,omitempty"`

	// Metadata carries detector-specific extras such as complexity estimates
	// or similarity ratios.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScanSummary aggregates a scan run: what was looked at and what came back.
type ScanSummary struct {
	FilesScanned  int              `json:"files_scanned"`
	FilesSkipped  int              `json:"files_skipped"`
	TotalFindings int              `json:"total_findings"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[string]int   `json:"by_category"`
	Duration      time.Duration    `json:"duration"`
}

// ScanReport is the full result of one scan operation.
type ScanReport struct {
	Findings []Finding   `json:"findings"`
	Summary  ScanSummary `json:"summary"`

	// SecurityScore is a 0-100 aggregate populated by the security scan only:
	// 100 minus weighted deductions per finding severity, floored at 0.
	SecurityScore *float64 `json:"security_score,omitempty"`
}

// Summarize builds a ScanSummary from a slice of findings.
func Summarize(findings []Finding, scanned, skipped int, duration time.Duration) ScanSummary {
	summary := ScanSummary{
		FilesScanned:  scanned,
		FilesSkipped:  skipped,
		TotalFindings: len(findings),
		BySeverity:    make(map[Severity]int),
		ByCategory:    make(map[string]int),
		Duration:      duration,
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByCategory[f.Category]++
	}
	return summary
}
