package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// Hot-spot structural thresholds.
const (
	hotSpotCallerCount = 10
	hotSpotLineCount   = 50
)

// ioVocabulary marks names that usually mean blocking I/O.
var ioVocabulary = []string{
	"read", "write", "open", "fetch", "request", "query", "download", "upload", "send", "recv",
}

// loopOpeners are the line prefixes that start a loop in the languages the
// extractor covers.
var loopOpeners = []string{"for ", "for(", "while ", "while(", "foreach ", "loop "}

// PerformanceScanner produces advisory performance findings from source
// text shape and graph degree.
type PerformanceScanner struct {
	query *graph.Query
	files FileReader
	log   *zap.Logger
}

// NewPerformanceScanner builds the scanner.
func NewPerformanceScanner(query *graph.Query, files FileReader, logger *zap.Logger) *PerformanceScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceScanner{query: query, files: files, log: logger.Named("PerformanceScan")}
}

// Scan inspects each function/method in scope. Text-dependent rules read the
// symbol's file; an unreadable file skips that symbol only and is counted in
// the summary, never failing the scan.
func (p *PerformanceScanner) Scan(opts Options) schemas.ScanReport {
	start := time.Now()
	store := p.query.Store()

	findings := []schemas.Finding{}
	files := map[string]bool{}
	skipped := map[string]bool{}
	sources := map[string]string{}

	for _, kind := range []schemas.NodeKind{schemas.NodeKindFunction, schemas.NodeKindMethod} {
		for _, id := range store.NodesByKind(kind) {
			node, _ := store.GetNode(id)
			if !opts.inScope(node.File) {
				continue
			}
			files[node.File] = true

			if opts.wantsType("hot_spot") {
				if f, ok := p.checkHotSpot(node); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}

			needText := opts.wantsType("nested_loops") ||
				opts.wantsType("string_concat_in_loop") ||
				opts.wantsType("io_in_loop")
			if !needText {
				continue
			}
			text, ok := p.spanText(node, sources, skipped)
			if !ok {
				continue
			}

			if opts.wantsType("nested_loops") {
				if f, ok := p.checkNestedLoops(node, text); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
			if opts.wantsType("string_concat_in_loop") {
				if f, ok := p.checkConcatInLoop(node, text); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
			if opts.wantsType("io_in_loop") {
				if f, ok := p.checkIOInLoop(node, text); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
		}
	}

	return schemas.ScanReport{
		Findings: findings,
		Summary:  schemas.Summarize(findings, len(files), len(skipped), time.Since(start)),
	}
}

// spanText extracts the node's span from its file, caching whole files and
// remembering unreadable ones so each is reported skipped once.
func (p *PerformanceScanner) spanText(node *schemas.Node, sources map[string]string, skipped map[string]bool) (string, bool) {
	if skipped[node.File] {
		return "", false
	}
	text, ok := sources[node.File]
	if !ok {
		var err error
		text, err = p.files.ReadText(node.File)
		if err != nil {
			p.log.Debug("Skipping unreadable file", zap.String("file", node.File), zap.Error(err))
			skipped[node.File] = true
			return "", false
		}
		sources[node.File] = text
	}
	lines := strings.Split(text, "\n")
	startLine := node.Span.StartLine - 1
	endLine := node.Span.EndLine
	if startLine < 0 || startLine >= len(lines) {
		return "", false
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	return strings.Join(lines[startLine:endLine], "\n"), true
}

// loopDepths walks the text line by line tracking a heuristic loop-nesting
// counter, returning the maximum depth and, per line, the depth it sits at.
func loopDepths(text string) (int, []int) {
	type open struct{ indent int }
	var stack []open
	maxDepth := 0
	lines := strings.Split(text, "\n")
	depths := make([]int, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		// Close loops when dedenting past their opening indent.
		for len(stack) > 0 && trimmed != "" && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}
		depths[i] = len(stack)

		for _, opener := range loopOpeners {
			if strings.HasPrefix(trimmed, opener) {
				stack = append(stack, open{indent: indent})
				if len(stack) > maxDepth {
					maxDepth = len(stack)
				}
				break
			}
		}
	}
	return maxDepth, depths
}

// checkNestedLoops estimates time complexity from loop nesting: depth d maps
// to O(n^d), capped at O(n^4) in the report.
func (p *PerformanceScanner) checkNestedLoops(node *schemas.Node, text string) (schemas.Finding, bool) {
	depth, _ := loopDepths(text)
	if depth < 2 {
		return schemas.Finding{}, false
	}

	severity := schemas.SeverityMedium
	effort := "medium"
	switch {
	case depth >= 4:
		severity = schemas.SeverityCritical
		effort = "high"
	case depth == 3:
		severity = schemas.SeverityHigh
		effort = "high"
	}
	estimate := fmt.Sprintf("O(n^%d)", min(depth, 4))

	f := newFinding("performance", "nested_loops", node, severity, 0.8,
		fmt.Sprintf("%s %q contains loops nested %d deep", node.Kind, node.Name, depth))
	f.Indicators = []string{fmt.Sprintf("maximum loop nesting depth %d", depth)}
	f.Recommendation = "Restructure with indexing, hashing, or precomputation to cut the nesting depth."
	f.Metadata = map[string]any{
		"complexity_estimate": estimate,
		"impact_score":        float64(depth) * 2.5,
		"optimization_effort": effort,
	}
	return f, true
}

// checkConcatInLoop flags += string building inside a loop body.
func (p *PerformanceScanner) checkConcatInLoop(node *schemas.Node, text string) (schemas.Finding, bool) {
	_, depths := loopDepths(text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if depths[i] == 0 {
			continue
		}
		if strings.Contains(line, "+=") && (strings.Contains(line, "\"") || strings.Contains(line, "'") || strings.Contains(strings.ToLower(line), "str")) {
			f := newFinding("performance", "string_concat_in_loop", node, schemas.SeverityMedium, 0.7,
				fmt.Sprintf("%s %q builds a string with += inside a loop", node.Kind, node.Name))
			f.Indicators = []string{strings.TrimSpace(line)}
			f.Recommendation = "Accumulate parts and join once, or use a builder/buffer."
			f.Metadata = map[string]any{
				"complexity_estimate": "O(n^2)",
				"impact_score":        5.0,
				"optimization_effort": "low",
			}
			return f, true
		}
	}
	return schemas.Finding{}, false
}

// checkIOInLoop flags I/O-named calls inside loop bodies.
func (p *PerformanceScanner) checkIOInLoop(node *schemas.Node, text string) (schemas.Finding, bool) {
	_, depths := loopDepths(text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if depths[i] == 0 {
			continue
		}
		matched := containsAny(line, ioVocabulary)
		if len(matched) == 0 || !strings.Contains(line, "(") {
			continue
		}
		f := newFinding("performance", "io_in_loop", node, schemas.SeverityHigh, 0.6,
			fmt.Sprintf("%s %q appears to perform I/O inside a loop", node.Kind, node.Name))
		f.Indicators = append(matched, strings.TrimSpace(line))
		f.Recommendation = "Batch the I/O outside the loop or pipeline the requests."
		f.Metadata = map[string]any{
			"impact_score":        7.0,
			"optimization_effort": "medium",
		}
		return f, true
	}
	return schemas.Finding{}, false
}

// checkHotSpot flags heavily-referenced, large symbols from graph degree
// alone: caller count contributes 0.5, line count 0.3.
func (p *PerformanceScanner) checkHotSpot(node *schemas.Node) (schemas.Finding, bool) {
	callers := len(p.query.Store().Incoming(node.ID))
	lines := node.Span.Lines()
	if callers < hotSpotCallerCount || lines < hotSpotLineCount {
		return schemas.Finding{}, false
	}
	f := newFinding("performance", "hot_spot", node, schemas.SeverityMedium, 0.8,
		fmt.Sprintf("%s %q is large and heavily referenced", node.Kind, node.Name))
	f.Indicators = []string{
		fmt.Sprintf("%d incoming references (threshold %d)", callers, hotSpotCallerCount),
		fmt.Sprintf("%d lines (threshold %d)", lines, hotSpotLineCount),
	}
	f.Recommendation = "Profile before optimizing; a hot large function dominates runtime when it is actually hot."
	f.Metadata = map[string]any{
		"impact_score":        float64(callers) / 2,
		"optimization_effort": "medium",
	}
	return f, true
}
