package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// entryPointNames are symbols conventionally invoked from outside the graph;
// a zero reference count on them means nothing.
var entryPointNames = []string{
	"main", "__main__", "__init__", "init", "setup", "teardown",
	"run", "start", "stop", "handle", "handler", "execute",
}

// externalAPIPrefixes mark names likely consumed by code outside the
// snapshot (frameworks, tests, plugin registries).
var externalAPIPrefixes = []string{"test_", "Test", "on_", "do_", "cmd_"}

// UnusedScanner finds symbols with no incoming references, weighted by
// naming heuristics for likely external use.
type UnusedScanner struct {
	query *graph.Query
	log   *zap.Logger
}

// NewUnusedScanner builds the scanner.
func NewUnusedScanner(query *graph.Query, logger *zap.Logger) *UnusedScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnusedScanner{query: query, log: logger.Named("UnusedScan")}
}

// ruleForKind maps a node kind to its detector rule name.
func ruleForKind(kind schemas.NodeKind) string {
	switch kind {
	case schemas.NodeKindFunction, schemas.NodeKindMethod:
		return "unused_function"
	case schemas.NodeKindClass:
		return "unused_class"
	case schemas.NodeKindVariable:
		return "unused_variable"
	case schemas.NodeKindImport:
		return "unused_import"
	default:
		return ""
	}
}

// Scan inspects functions, methods, classes, variables, and imports. The
// base signal is a zero incoming-reference count (confidence 0.9); naming
// heuristics for entry points and likely external APIs subtract from it, so
// a plausible externally-called "main" never clears a sane threshold.
func (u *UnusedScanner) Scan(opts Options) schemas.ScanReport {
	start := time.Now()
	store := u.query.Store()

	kinds := []schemas.NodeKind{
		schemas.NodeKindFunction,
		schemas.NodeKindMethod,
		schemas.NodeKindClass,
		schemas.NodeKindVariable,
		schemas.NodeKindImport,
	}

	files := map[string]bool{}
	findings := []schemas.Finding{}
	for _, kind := range kinds {
		rule := ruleForKind(kind)
		if !opts.wantsType(rule) {
			continue
		}
		for _, id := range store.NodesByKind(kind) {
			node, _ := store.GetNode(id)
			if !opts.inScope(node.File) {
				continue
			}
			files[node.File] = true
			if len(store.Incoming(id)) > 0 {
				continue
			}

			confidence := 0.9
			var indicators []string
			indicators = append(indicators, "zero incoming references")

			if isEntryPointName(node.Name) {
				confidence -= 0.5
				indicators = append(indicators, "entry-point naming convention")
			}
			if hasExternalAPIShape(node.Name) {
				confidence -= 0.3
				indicators = append(indicators, "likely external-API naming")
			}
			if isTestFile(node.File) {
				confidence -= 0.2
				indicators = append(indicators, "declared in test code")
			}
			if confidence < 0 {
				confidence = 0
			}

			f := newFinding("unused", rule, node, severityForUnused(kind), confidence,
				fmt.Sprintf("%s %q has no references in the snapshot", node.Kind, node.Name))
			f.Indicators = indicators
			f.Recommendation = recommendationForUnused(kind)
			if opts.meetsThreshold(f) {
				findings = append(findings, f)
			}
		}
	}

	u.log.Debug("Unused-code scan finished", zap.Int("findings", len(findings)))
	return schemas.ScanReport{
		Findings: findings,
		Summary:  schemas.Summarize(findings, len(files), 0, time.Since(start)),
	}
}

func isEntryPointName(name string) bool {
	lower := strings.ToLower(name)
	for _, entry := range entryPointNames {
		if lower == entry {
			return true
		}
	}
	return false
}

func hasExternalAPIShape(name string) bool {
	for _, prefix := range externalAPIPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func severityForUnused(kind schemas.NodeKind) schemas.Severity {
	if kind == schemas.NodeKindImport || kind == schemas.NodeKindVariable {
		return schemas.SeverityInfo
	}
	return schemas.SeverityLow
}

func recommendationForUnused(kind schemas.NodeKind) string {
	switch kind {
	case schemas.NodeKindImport:
		return "Remove the unused import."
	case schemas.NodeKindVariable:
		return "Remove the unused variable, or use it."
	default:
		return "Verify no external caller exists, then delete the dead code."
	}
}
