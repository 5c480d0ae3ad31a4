package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// APISurfaceScanner inventories the public API of a snapshot and flags
// deprecated elements and missing documentation.
type APISurfaceScanner struct {
	query *graph.Query
	files FileReader
	log   *zap.Logger
}

// NewAPISurfaceScanner builds the scanner.
func NewAPISurfaceScanner(query *graph.Query, files FileReader, logger *zap.Logger) *APISurfaceScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APISurfaceScanner{query: query, files: files, log: logger.Named("APISurfaceScan")}
}

// isPublic applies the cross-language convention the extractor records
// names under: a leading underscore means private.
func isPublic(node *schemas.Node) bool {
	return node.Name != "" && !strings.HasPrefix(node.Name, "_")
}

// Scan inventories public functions, methods, and classes. Documentation
// checks read source text; unreadable files skip only the affected symbols.
func (a *APISurfaceScanner) Scan(opts Options) schemas.ScanReport {
	start := time.Now()
	store := a.query.Store()

	findings := []schemas.Finding{}
	files := map[string]bool{}
	skipped := map[string]bool{}
	sources := map[string]string{}
	publicCount := 0

	for _, kind := range []schemas.NodeKind{
		schemas.NodeKindFunction,
		schemas.NodeKindMethod,
		schemas.NodeKindClass,
	} {
		for _, id := range store.NodesByKind(kind) {
			node, _ := store.GetNode(id)
			if !opts.inScope(node.File) || !isPublic(node) {
				continue
			}
			files[node.File] = true
			publicCount++

			if opts.wantsType("deprecated") {
				if f, ok := a.checkDeprecated(node, sources, skipped); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
			if opts.wantsType("missing_documentation") {
				if f, ok := a.checkDocumentation(node, sources, skipped); ok && opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
		}
	}

	summary := schemas.Summarize(findings, len(files), len(skipped), time.Since(start))
	report := schemas.ScanReport{Findings: findings, Summary: summary}
	a.log.Debug("API surface scan finished",
		zap.Int("public_elements", publicCount),
		zap.Int("findings", len(findings)))

	// The inventory travels on every finding's metadata so consumers can read
	// it off whichever finding they hold; without findings the summary counts
	// stand in.
	for i := range report.Findings {
		if report.Findings[i].Metadata == nil {
			report.Findings[i].Metadata = map[string]any{}
		}
		report.Findings[i].Metadata["public_elements"] = publicCount
	}
	return report
}

func (a *APISurfaceScanner) readFile(file string, sources map[string]string, skipped map[string]bool) (string, bool) {
	if skipped[file] {
		return "", false
	}
	text, ok := sources[file]
	if ok {
		return text, true
	}
	text, err := a.files.ReadText(file)
	if err != nil {
		a.log.Debug("Skipping unreadable file", zap.String("file", file), zap.Error(err))
		skipped[file] = true
		return "", false
	}
	sources[file] = text
	return text, true
}

// checkDeprecated looks at the extractor's metadata flag first, then for a
// deprecation marker in the declaration's leading lines.
func (a *APISurfaceScanner) checkDeprecated(node *schemas.Node, sources map[string]string, skipped map[string]bool) (schemas.Finding, bool) {
	deprecated := node.MetaBool("deprecated")
	indicator := "extractor metadata flag"

	if !deprecated {
		text, ok := a.readFile(node.File, sources, skipped)
		if !ok {
			return schemas.Finding{}, false
		}
		head := declarationHead(text, node.Span, 5)
		if strings.Contains(head, "@deprecated") || strings.Contains(head, "DEPRECATED") || strings.Contains(head, "Deprecated:") {
			deprecated = true
			indicator = "deprecation marker near the declaration"
		}
	}
	if !deprecated {
		return schemas.Finding{}, false
	}

	f := newFinding("api_surface", "deprecated", node, schemas.SeverityMedium, 0.9,
		fmt.Sprintf("public %s %q is deprecated", node.Kind, node.Name))
	f.Indicators = []string{indicator}
	f.Recommendation = "Migrate callers to the replacement and schedule removal."
	return f, true
}

// checkDocumentation flags public symbols whose declaration head carries no
// docstring or comment.
func (a *APISurfaceScanner) checkDocumentation(node *schemas.Node, sources map[string]string, skipped map[string]bool) (schemas.Finding, bool) {
	text, ok := a.readFile(node.File, sources, skipped)
	if !ok {
		return schemas.Finding{}, false
	}
	head := declarationHead(text, node.Span, 3)
	for _, marker := range []string{"\"\"\"", "'''", "//", "#", "/*"} {
		if strings.Contains(head, marker) {
			return schemas.Finding{}, false
		}
	}

	f := newFinding("api_surface", "missing_documentation", node, schemas.SeverityInfo, 0.6,
		fmt.Sprintf("public %s %q has no documentation", node.Kind, node.Name))
	f.Indicators = []string{"no docstring or comment near the declaration"}
	f.Recommendation = "Document the public contract: parameters, return value, and errors."
	return f, true
}

// declarationHead returns the lines around the start of a span: up to
// context lines before it plus the first two lines of the body.
func declarationHead(text string, span schemas.Span, context int) string {
	lines := strings.Split(text, "\n")
	start := span.StartLine - 1 - context
	if start < 0 {
		start = 0
	}
	end := span.StartLine + 1
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
