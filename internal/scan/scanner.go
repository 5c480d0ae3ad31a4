// Package scan implements the heuristic signal scanners: design-pattern,
// unused-code, security, performance, API-surface, and duplicate detection.
// Every detector follows the same shape — select candidates, compute
// independent signals, combine them into a bounded score, emit a Finding
// only when the score clears the caller's threshold — and every finding is
// advisory, not a verdict.
package scan

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/google/uuid"
)

// FileReader is the file-access capability the scanners and metrics use. A
// failed read skips the single item being processed, never the whole scan.
type FileReader interface {
	ReadText(path string) (string, error)
}

// OSFileReader reads files from the local filesystem under a root directory.
type OSFileReader struct {
	Root string
}

// ReadText resolves path against the root and returns the file contents.
func (r OSFileReader) ReadText(path string) (string, error) {
	if !filepath.IsAbs(path) && r.Root != "" {
		path = filepath.Join(r.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Options are the shared scan parameters. Zero values mean "no restriction"
// except the thresholds, which the engine always populates explicitly.
type Options struct {
	// ScopeFile restricts the scan to candidates in one file.
	ScopeFile string
	// ExcludePatterns drops candidates whose file path contains any of these
	// substrings.
	ExcludePatterns []string
	// Types restricts which detector rules run; empty runs all.
	Types []string
	// ConfidenceThreshold drops findings scored below it.
	ConfidenceThreshold float64
	// MinSeverity drops findings below this tier (ordinal comparison).
	MinSeverity schemas.Severity
}

// inScope reports whether a candidate file passes the scope and exclusion
// filters.
func (o Options) inScope(file string) bool {
	if o.ScopeFile != "" && file != o.ScopeFile {
		return false
	}
	for _, pattern := range o.ExcludePatterns {
		if pattern != "" && strings.Contains(file, pattern) {
			return false
		}
	}
	return true
}

// wantsType reports whether a detector rule passes the type filter.
func (o Options) wantsType(rule string) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if t == rule {
			return true
		}
	}
	return false
}

// meetsThreshold applies both threshold styles: a confidence floor and a
// minimum severity tier.
func (o Options) meetsThreshold(f schemas.Finding) bool {
	if f.Confidence < o.ConfidenceThreshold {
		return false
	}
	if o.MinSeverity != "" && !f.Severity.AtLeast(o.MinSeverity) {
		return false
	}
	return true
}

// newFinding assembles a finding with a fresh id and timestamp.
func newFinding(category, rule string, node *schemas.Node, severity schemas.Severity, confidence float64, description string) schemas.Finding {
	f := schemas.Finding{
		ID:          uuid.NewString(),
		Category:    category,
		Rule:        rule,
		ObservedAt:  time.Now().UTC(),
		Severity:    severity,
		Confidence:  confidence,
		Description: description,
	}
	if node != nil {
		f.File = node.File
		f.Span = node.Span
	}
	return f
}

// containsAny reports whether the lowercased haystack contains any of the
// vocabulary words, returning the words that matched.
func containsAny(haystack string, vocabulary []string) []string {
	lower := strings.ToLower(haystack)
	var matched []string
	for _, word := range vocabulary {
		if strings.Contains(lower, word) {
			matched = append(matched, word)
		}
	}
	return matched
}

// isTestFile classifies a path as test code for score adjustment.
func isTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "test") || strings.Contains(lower, "spec")
}

// isProductionEntryFile classifies a path as main/production code.
func isProductionEntryFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "main") || strings.Contains(lower, "prod")
}
