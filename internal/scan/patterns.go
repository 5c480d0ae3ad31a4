package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// Anti-pattern structural thresholds.
const (
	godClassMethodCount = 20
	godClassLineCount   = 500
	longMethodLineCount = 100
)

// PatternScanner detects design patterns, anti-patterns, and architectural
// styles from naming vocabulary and structural counts.
type PatternScanner struct {
	query *graph.Query
	log   *zap.Logger
}

// NewPatternScanner builds the scanner.
func NewPatternScanner(query *graph.Query, logger *zap.Logger) *PatternScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternScanner{query: query, log: logger.Named("PatternScan")}
}

// Scan runs the pattern detectors selected by the type filter. Confidence
// weights per detector are documented inline; each signal contributes
// independently. FilesScanned counts every candidate file examined, whether
// or not it produced findings, matching the other node-driven scanners.
func (p *PatternScanner) Scan(opts Options) schemas.ScanReport {
	start := time.Now()

	findings := []schemas.Finding{}
	classes := p.classesInScope(opts)

	files := map[string]bool{}
	for _, class := range classes {
		files[class.File] = true
	}

	if opts.wantsType("singleton") {
		findings = append(findings, p.detectSingleton(classes)...)
	}
	if opts.wantsType("factory") {
		findings = append(findings, p.detectFactory(classes)...)
	}
	if opts.wantsType("observer") {
		findings = append(findings, p.detectObserver(classes)...)
	}
	if opts.wantsType("god_class") {
		findings = append(findings, p.detectGodClass(classes)...)
	}
	if opts.wantsType("long_method") {
		findings = append(findings, p.detectLongMethod(opts, files)...)
	}
	if opts.wantsType("mvc") {
		findings = append(findings, p.detectMVC(classes)...)
	}
	if opts.wantsType("repository") {
		findings = append(findings, p.detectRepository(classes)...)
	}

	kept := findings[:0]
	for _, f := range findings {
		if opts.meetsThreshold(f) {
			kept = append(kept, f)
		}
	}
	return schemas.ScanReport{
		Findings: kept,
		Summary:  schemas.Summarize(kept, len(files), 0, time.Since(start)),
	}
}

func (p *PatternScanner) classesInScope(opts Options) []*schemas.Node {
	store := p.query.Store()
	var classes []*schemas.Node
	for _, id := range store.NodesByKind(schemas.NodeKindClass) {
		node, _ := store.GetNode(id)
		if opts.inScope(node.File) {
			classes = append(classes, node)
		}
	}
	return classes
}

// methodsOf lists the method/function nodes a class points at.
func (p *PatternScanner) methodsOf(class *schemas.Node) []*schemas.Node {
	store := p.query.Store()
	var methods []*schemas.Node
	for _, edge := range store.Outgoing(class.ID) {
		target, ok := store.GetNode(edge.Target)
		if !ok {
			continue
		}
		if target.Kind == schemas.NodeKindMethod || target.Kind == schemas.NodeKindFunction {
			methods = append(methods, target)
		}
	}
	// Fallback for extractors that anchor methods to files rather than
	// class nodes: same file, span inside the class span.
	if len(methods) == 0 {
		for _, id := range store.NodesInFile(class.File) {
			node, _ := store.GetNode(id)
			if node.Kind != schemas.NodeKindMethod {
				continue
			}
			if node.Span.StartLine >= class.Span.StartLine && node.Span.EndLine <= class.Span.EndLine {
				methods = append(methods, node)
			}
		}
	}
	return methods
}

// detectSingleton: name vocabulary contributes 0.5, an instance-accessor
// method contributes 0.4.
func (p *PatternScanner) detectSingleton(classes []*schemas.Node) []schemas.Finding {
	var findings []schemas.Finding
	for _, class := range classes {
		confidence := 0.0
		var indicators []string
		if matched := containsAny(class.Name, []string{"singleton"}); len(matched) > 0 {
			confidence += 0.5
			indicators = append(indicators, "class name contains 'singleton'")
		}
		for _, method := range p.methodsOf(class) {
			if len(containsAny(method.Name, []string{"get_instance", "getinstance", "instance", "shared"})) > 0 {
				confidence += 0.4
				indicators = append(indicators, "instance-accessor method "+method.Name)
				break
			}
		}
		if confidence == 0 {
			continue
		}
		f := newFinding("patterns", "singleton", class, schemas.SeverityInfo, min(confidence, 1.0),
			fmt.Sprintf("class %q looks like a Singleton", class.Name))
		f.Indicators = indicators
		f.Recommendation = "Confirm single-instance semantics are intentional; singletons complicate testing."
		findings = append(findings, f)
	}
	return findings
}

// detectFactory: name vocabulary contributes 0.6, creator-method names 0.3.
func (p *PatternScanner) detectFactory(classes []*schemas.Node) []schemas.Finding {
	var findings []schemas.Finding
	for _, class := range classes {
		confidence := 0.0
		var indicators []string
		if len(containsAny(class.Name, []string{"factory", "builder"})) > 0 {
			confidence += 0.6
			indicators = append(indicators, "class name suggests a creator role")
		}
		creators := 0
		for _, method := range p.methodsOf(class) {
			if len(containsAny(method.Name, []string{"create", "build", "make_", "new_"})) > 0 {
				creators++
			}
		}
		if creators > 0 {
			confidence += 0.3
			indicators = append(indicators, fmt.Sprintf("%d creator-named methods", creators))
		}
		if confidence < 0.3 {
			continue
		}
		f := newFinding("patterns", "factory", class, schemas.SeverityInfo, min(confidence, 1.0),
			fmt.Sprintf("class %q looks like a Factory", class.Name))
		f.Indicators = indicators
		f.Recommendation = "No action needed; recorded for architecture documentation."
		findings = append(findings, f)
	}
	return findings
}

// detectObserver: subject/observer vocabulary on the class 0.4, notify or
// subscribe methods 0.4.
func (p *PatternScanner) detectObserver(classes []*schemas.Node) []schemas.Finding {
	var findings []schemas.Finding
	for _, class := range classes {
		confidence := 0.0
		var indicators []string
		if len(containsAny(class.Name, []string{"observer", "listener", "subscriber", "publisher"})) > 0 {
			confidence += 0.4
			indicators = append(indicators, "class name suggests publish/subscribe role")
		}
		for _, method := range p.methodsOf(class) {
			if len(containsAny(method.Name, []string{"notify", "subscribe", "unsubscribe", "emit", "on_"})) > 0 {
				confidence += 0.4
				indicators = append(indicators, "event method "+method.Name)
				break
			}
		}
		if confidence == 0 {
			continue
		}
		f := newFinding("patterns", "observer", class, schemas.SeverityInfo, min(confidence, 1.0),
			fmt.Sprintf("class %q looks like an Observer participant", class.Name))
		f.Indicators = indicators
		f.Recommendation = "No action needed; recorded for architecture documentation."
		findings = append(findings, f)
	}
	return findings
}

// detectGodClass flags classes whose method count or line span exceeds the
// structural thresholds.
func (p *PatternScanner) detectGodClass(classes []*schemas.Node) []schemas.Finding {
	var findings []schemas.Finding
	for _, class := range classes {
		methods := len(p.methodsOf(class))
		lines := class.Span.Lines()
		if methods <= godClassMethodCount && lines <= godClassLineCount {
			continue
		}
		f := newFinding("patterns", "god_class", class, schemas.SeverityMedium, 0.8,
			fmt.Sprintf("class %q concentrates too much responsibility", class.Name))
		f.Indicators = []string{
			fmt.Sprintf("%d methods (threshold %d)", methods, godClassMethodCount),
			fmt.Sprintf("%d lines (threshold %d)", lines, godClassLineCount),
		}
		f.Recommendation = "Split the class along its distinct responsibilities."
		findings = append(findings, f)
	}
	return findings
}

// detectLongMethod flags function/method bodies spanning more lines than the
// threshold.
func (p *PatternScanner) detectLongMethod(opts Options, files map[string]bool) []schemas.Finding {
	store := p.query.Store()
	var findings []schemas.Finding
	for _, kind := range []schemas.NodeKind{schemas.NodeKindFunction, schemas.NodeKindMethod} {
		for _, id := range store.NodesByKind(kind) {
			node, _ := store.GetNode(id)
			if !opts.inScope(node.File) {
				continue
			}
			files[node.File] = true
			lines := node.Span.Lines()
			if lines <= longMethodLineCount {
				continue
			}
			f := newFinding("patterns", "long_method", node, schemas.SeverityLow, 0.9,
				fmt.Sprintf("%s %q spans %d lines", node.Kind, node.Name, lines))
			f.Indicators = []string{fmt.Sprintf("%d lines (threshold %d)", lines, longMethodLineCount)}
			f.Recommendation = "Extract cohesive sections into named helpers."
			findings = append(findings, f)
		}
	}
	return findings
}

/// detectMVC is a cross-check over the candidate set: it fires once when
// Controller-, Model-, and View-named classes are all present.
func (p *PatternScanner) detectMVC(classes []*schemas.Node) []schemas.Finding {
	var controller, model, view *schemas.Node
	for _, class := range classes {
		switch {
		case controller == nil && strings.Contains(class.Name, "Controller"):
			controller = class
		case model == nil && strings.Contains(class.Name, "Model"):
			model = class
		case view == nil && strings.Contains(class.Name, "View"):
			view = class
		}
	}
	if controller == nil || model == nil || view == nil {
		return nil
	}
	f := newFinding("patterns", "mvc", controller, schemas.SeverityInfo, 0.7,
		"Controller, Model, and View classes are all present; codebase follows MVC")
	f.Indicators = []string{controller.Name, model.Name, view.Name}
	f.Recommendation = "No action needed; recorded for architecture documentation."
	return []schemas.Finding{f}
}

// detectRepository flags *Repository-named classes as data-access points.
func (p *PatternScanner) detectRepository(classes []*schemas.Node) []schemas.Finding {
	var findings []schemas.Finding
	for _, class := range classes {
		if !strings.HasSuffix(class.Name, "Repository") && !strings.HasSuffix(class.Name, "Repo") {
			continue
		}
		f := newFinding("patterns", "repository", class, schemas.SeverityInfo, 0.8,
			fmt.Sprintf("class %q follows the Repository pattern", class.Name))
		f.Indicators = []string{"class name suffix"}
		f.Recommendation = "No action needed; recorded for architecture documentation."
		findings = append(findings, f)
	}
	return findings
}
