// Package engine is the typed operation facade over the graph store, the
// query/traversal layers, the metrics calculator, and the heuristic
// scanners. It owns parameter validation and the error taxonomy; the layers
// below it assume well-formed input.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/config"
	"github.com/cartograph-io/cartograph/internal/graph"
	"github.com/cartograph-io/cartograph/internal/metrics"
	"github.com/cartograph-io/cartograph/internal/scan"
	"go.uber.org/zap"
)

// Engine answers structural and heuristic questions about one immutable
// snapshot. It holds no mutable state after construction, so it is safe for
// concurrent use; snapshot replacement means building a new Engine.
type Engine struct {
	store      *graph.Store
	query      *graph.Query
	transitive *graph.Transitive
	flow       *graph.DataFlow
	files      scan.FileReader
	cfg        config.EngineConfig
	scanCfg    config.ScanConfig
	log        *zap.Logger
}

// New builds an engine over the snapshot. files provides source text for the
// metrics calculator and the text-dependent scanners.
func New(snapshot schemas.Snapshot, cfg config.Interface, files scan.FileReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("Engine")
	store := graph.NewStore(snapshot, logger)
	query := graph.NewQuery(store, logger)
	return &Engine{
		store:      store,
		query:      query,
		transitive: graph.NewTransitive(query, logger),
		flow:       graph.NewDataFlow(query, logger),
		files:      files,
		cfg:        cfg.Engine(),
		scanCfg:    cfg.Scan(),
		log:        log,
	}
}

// TargetRef names a node either by id (hex) or by symbol name, optionally
// narrowed to a file. An id takes precedence over a name.
type TargetRef struct {
	ID   string
	Name string
	File string
}

// Resolve maps a TargetRef to a node in the snapshot. Name resolution over
// ambiguous symbols picks the candidate with the smallest id, which is
// stable across runs.
func (e *Engine) Resolve(ref TargetRef) (*schemas.Node, error) {
	switch {
	case ref.ID != "":
		id, err := schemas.ParseNodeID(ref.ID)
		if err != nil {
			return nil, fmt.Errorf("node id %q: %w", ref.ID, ErrInvalidInput)
		}
		node, ok := e.store.GetNode(id)
		if !ok {
			return nil, fmt.Errorf("node %s: %w", id.Hex(), ErrNotFound)
		}
		return node, nil

	case ref.Name != "":
		candidates := e.store.NodesByName(ref.Name)
		var filtered []schemas.NodeID
		for _, id := range candidates {
			node, _ := e.store.GetNode(id)
			if ref.File == "" || node.File == ref.File {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			return nil, fmt.Errorf("symbol %q: %w", ref.Name, ErrNotFound)
		}
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Hex() < filtered[j].Hex() })
		if len(filtered) > 1 {
			e.log.Debug("Ambiguous symbol name, using smallest id",
				zap.String("name", ref.Name), zap.Int("candidates", len(filtered)))
		}
		node, _ := e.store.GetNode(filtered[0])
		return node, nil

	default:
		return nil, fmt.Errorf("target needs an id or a name: %w", ErrInvalidInput)
	}
}

// boundDepth validates a traversal depth and caps it at the configured
// ceiling.
func (e *Engine) boundDepth(depth int) (int, error) {
	if depth < 0 {
		return 0, fmt.Errorf("max depth %d: %w", depth, ErrInvalidInput)
	}
	if e.cfg.MaxTraversalDepth > 0 && depth > e.cfg.MaxTraversalDepth {
		e.log.Warn("Capping traversal depth",
			zap.Int("requested", depth), zap.Int("cap", e.cfg.MaxTraversalDepth))
		depth = e.cfg.MaxTraversalDepth
	}
	return depth, nil
}

// Stats reports snapshot-level aggregate counts.
func (e *Engine) Stats() graph.Stats {
	return e.store.Stats()
}

// RepoID returns the snapshot's repository identifier.
func (e *Engine) RepoID() string {
	return e.store.RepoID()
}

// FindDependencies lists the target's outgoing edges filtered by dependency
// type. An empty dependencyType means "direct" (all outgoing edges). A
// file-only target unions the dependencies of every node declared in that
// file, deduplicated by (target, edge kind).
func (e *Engine) FindDependencies(ref TargetRef, dependencyType string) ([]graph.Dependency, error) {
	if dependencyType == "" {
		dependencyType = "direct"
	}
	depType, err := schemas.ParseDependencyType(dependencyType)
	if err != nil {
		return nil, fmt.Errorf("dependency type %q: %w", dependencyType, ErrInvalidInput)
	}
	if ref.ID == "" && ref.Name == "" && ref.File != "" {
		return e.fileDependencies(ref.File, depType)
	}
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	deps, _ := e.query.FindDependencies(node.ID, depType)
	return deps, nil
}

// fileDependencies aggregates per-node dependencies across a whole file, in
// ascending node-id order so the union is stable across runs.
func (e *Engine) fileDependencies(file string, depType schemas.DependencyType) ([]graph.Dependency, error) {
	ids := append([]schemas.NodeID(nil), e.store.NodesInFile(file)...)
	if len(ids) == 0 {
		return nil, fmt.Errorf("file %q: %w", file, ErrNotFound)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	seen := make(map[string]bool)
	deps := make([]graph.Dependency, 0)
	for _, id := range ids {
		nodeDeps, _ := e.query.FindDependencies(id, depType)
		for _, dep := range nodeDeps {
			key := dep.Target.ID.Hex() + ":" + dep.EdgeKind.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

// FindReferences lists the incoming edges of the target with their sites.
func (e *Engine) FindReferences(ref TargetRef) ([]graph.Reference, error) {
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	refs, _ := e.query.FindReferences(node.ID)
	return refs, nil
}

// FindPath returns the shortest path from source to target, or (nil, nil)
// when the target is unreachable within the depth bound.
func (e *Engine) FindPath(source, target TargetRef, opts PathOptions) (*graph.PathResult, error) {
	depth, err := e.boundDepth(opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	src, err := e.Resolve(source)
	if err != nil {
		return nil, err
	}
	tgt, err := e.Resolve(target)
	if err != nil {
		return nil, err
	}
	return e.query.FindPath(src.ID, tgt.ID, depth), nil
}

// SearchSymbols runs a ranked name-pattern search.
func (e *Engine) SearchSymbols(pattern string, opts SearchOptions) ([]graph.SymbolInfo, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty search pattern: %w", ErrInvalidInput)
	}
	kinds, err := parseNodeKinds(opts.Kinds)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.SearchLimit
	}
	filter := graph.SymbolFilter{InheritsFrom: opts.InheritsFrom, InFile: opts.InFile}
	return e.query.SearchSymbols(pattern, kinds, filter, limit), nil
}

// GetInheritanceInfo reports the class relationships of a class-kind node.
func (e *Engine) GetInheritanceInfo(ref TargetRef) (*graph.InheritanceInfo, error) {
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if node.Kind != schemas.NodeKindClass {
		return nil, fmt.Errorf("inheritance info for %s node %q: %w", node.Kind, node.Name, ErrUnsupported)
	}
	info, _ := e.query.GetInheritanceInfo(node.ID)
	return info, nil
}

// TransitiveResult bundles the reachable dependency set with the chains
// leading to it and, when requested, the cycles found from the seed.
type TransitiveResult struct {
	Dependencies []graph.TransitiveDependency `json:"dependencies"`
	Chains       [][]string                   `json:"chains,omitempty"`
	Cycles       []graph.Cycle                `json:"cycles,omitempty"`
}

// TransitiveDependencies computes the bounded reachable set from the seed.
func (e *Engine) TransitiveDependencies(ref TargetRef, opts TransitiveOptions) (*TransitiveResult, error) {
	depth, err := e.boundDepth(opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	edgeKinds, err := parseEdgeKinds(opts.EdgeKinds)
	if err != nil {
		return nil, err
	}
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}

	result := &TransitiveResult{}
	result.Dependencies, _ = e.transitive.Dependencies(node.ID, depth, edgeKinds)
	result.Chains, _ = e.transitive.Chains(node.ID, depth)
	if opts.DetectCycles {
		result.Cycles, _ = e.transitive.DetectCycles(node.ID)
	}
	return result, nil
}

// DetectCycles runs cycle detection alone from the seed.
func (e *Engine) DetectCycles(ref TargetRef) ([]graph.Cycle, error) {
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	cycles, _ := e.transitive.DetectCycles(node.ID)
	return cycles, nil
}

// TraceDataFlow follows read/write/call flow from the symbol.
func (e *Engine) TraceDataFlow(ref TargetRef, opts TraceOptions) (*graph.FlowResult, error) {
	direction, err := graph.ParseDirection(opts.Direction)
	if err != nil {
		return nil, fmt.Errorf("direction %q: %w", opts.Direction, ErrInvalidInput)
	}
	depth, err := e.boundDepth(opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	node, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	result, ok := e.flow.Trace(node.ID, direction, depth, opts.FollowCalls)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", node.ID.Hex(), ErrNotFound)
	}
	return result, nil
}

// SymbolComplexity is one analyzed symbol (or whole file) with its metrics.
type SymbolComplexity struct {
	Name    string         `json:"name"`
	File    string         `json:"file"`
	Span    schemas.Span   `json:"span"`
	Metrics metrics.Report `json:"metrics"`
}

// complexityMetricNames is the closed set ComplexityOptions.Metrics draws
// from.
var complexityMetricNames = map[string]bool{
	"lines":           true,
	"cyclomatic":      true,
	"cognitive":       true,
	"halstead":        true,
	"maintainability": true,
}

// AnalyzeComplexity computes source metrics for one symbol or for every
// function and method in a file. Unreadable source text for the primary
// target is an ErrIOFailure.
func (e *Engine) AnalyzeComplexity(target TargetRef, opts ComplexityOptions) ([]SymbolComplexity, error) {
	selected := map[string]bool{}
	for _, name := range opts.Metrics {
		if !complexityMetricNames[name] {
			return nil, fmt.Errorf("metric %q: %w", name, ErrInvalidInput)
		}
		selected[name] = true
	}

	if target.ID != "" || target.Name != "" {
		node, err := e.Resolve(target)
		if err != nil {
			return nil, err
		}
		text, err := e.symbolText(node)
		if err != nil {
			return nil, err
		}
		report := metrics.Analyze(text, node.Span.Lines(), opts.WarnOnThreshold)
		return []SymbolComplexity{{
			Name:    node.Name,
			File:    node.File,
			Span:    node.Span,
			Metrics: applySelection(report, selected),
		}}, nil
	}

	if target.File == "" {
		return nil, fmt.Errorf("target needs an id, a name, or a file: %w", ErrInvalidInput)
	}

	var ids []schemas.NodeID
	for _, id := range e.store.NodesInFile(target.File) {
		node, _ := e.store.GetNode(id)
		if node.Kind == schemas.NodeKindFunction || node.Kind == schemas.NodeKindMethod {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	text, err := e.files.ReadText(target.File)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", target.File, ErrIOFailure)
	}

	// A file with no indexed functions is analyzed as one unit.
	if len(ids) == 0 {
		report := metrics.Analyze(text, 0, opts.WarnOnThreshold)
		return []SymbolComplexity{{
			Name:    target.File,
			File:    target.File,
			Metrics: applySelection(report, selected),
		}}, nil
	}

	lines := strings.Split(text, "\n")
	results := make([]SymbolComplexity, 0, len(ids))
	for _, id := range ids {
		node, _ := e.store.GetNode(id)
		body, ok := sliceSpan(lines, node.Span)
		if !ok {
			e.log.Debug("Span outside file bounds, skipping symbol",
				zap.String("symbol", node.Name), zap.String("file", node.File))
			continue
		}
		report := metrics.Analyze(body, node.Span.Lines(), opts.WarnOnThreshold)
		results = append(results, SymbolComplexity{
			Name:    node.Name,
			File:    node.File,
			Span:    node.Span,
			Metrics: applySelection(report, selected),
		})
	}
	return results, nil
}

// symbolText reads the node's file and extracts its span.
func (e *Engine) symbolText(node *schemas.Node) (string, error) {
	text, err := e.files.ReadText(node.File)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", node.File, ErrIOFailure)
	}
	body, ok := sliceSpan(strings.Split(text, "\n"), node.Span)
	if !ok {
		return "", fmt.Errorf("span of %q outside %q: %w", node.Name, node.File, ErrInvalidInput)
	}
	return body, nil
}

func sliceSpan(lines []string, span schemas.Span) (string, bool) {
	start := span.StartLine - 1
	end := span.EndLine
	if start < 0 || start >= len(lines) {
		return "", false
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n"), true
}

// applySelection blanks deselected metric families and their warnings. An
// empty selection keeps everything.
func applySelection(report metrics.Report, selected map[string]bool) metrics.Report {
	if len(selected) == 0 {
		return report
	}
	if !selected["lines"] {
		report.Lines = 0
	}
	if !selected["cyclomatic"] {
		report.Cyclomatic = 0
	}
	if !selected["cognitive"] {
		report.Cognitive = 0
	}
	if !selected["halstead"] {
		report.Halstead = metrics.Halstead{}
	}
	if !selected["maintainability"] {
		report.Maintainability = 0
	}
	kept := report.Warnings[:0]
	for _, warning := range report.Warnings {
		family := strings.SplitN(warning, " ", 2)[0]
		if selected[family] {
			kept = append(kept, warning)
		}
	}
	report.Warnings = kept
	return report
}

// scanOptions merges a request with the configured scan defaults.
func (e *Engine) scanOptions(req ScanRequest) (scan.Options, error) {
	confidence := req.ConfidenceThreshold
	if confidence < 0 {
		confidence = e.scanCfg.ConfidenceThreshold
	}
	if confidence > 1 {
		return scan.Options{}, fmt.Errorf("confidence threshold %v: %w", confidence, ErrInvalidInput)
	}
	minSeverity := req.MinSeverity
	if minSeverity == "" {
		minSeverity = e.scanCfg.SeverityThreshold
	}
	severity, err := schemas.ParseSeverity(minSeverity)
	if err != nil {
		return scan.Options{}, fmt.Errorf("severity %q: %w", minSeverity, ErrInvalidInput)
	}
	return scan.Options{
		ScopeFile:           req.ScopeFile,
		ExcludePatterns:     e.scanCfg.ExcludePatterns,
		Types:               req.Types,
		ConfidenceThreshold: confidence,
		MinSeverity:         severity,
	}, nil
}

// DetectPatterns runs the design/anti-pattern detectors.
func (e *Engine) DetectPatterns(req ScanRequest) (schemas.ScanReport, error) {
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	return scan.NewPatternScanner(e.query, e.log).Scan(opts), nil
}

// FindUnusedCode runs the zero-reference detector.
func (e *Engine) FindUnusedCode(req ScanRequest) (schemas.ScanReport, error) {
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	return scan.NewUnusedScanner(e.query, e.log).Scan(opts), nil
}

// AnalyzeSecurity runs the vocabulary-based security detectors.
func (e *Engine) AnalyzeSecurity(req ScanRequest) (schemas.ScanReport, error) {
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	return scan.NewSecurityScanner(e.query, e.log).Scan(opts), nil
}

// AnalyzePerformance runs the performance heuristics.
func (e *Engine) AnalyzePerformance(req ScanRequest) (schemas.ScanReport, error) {
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	return scan.NewPerformanceScanner(e.query, e.files, e.log).Scan(opts), nil
}

// AnalyzeAPISurface inventories the public API and its problems.
func (e *Engine) AnalyzeAPISurface(req ScanRequest) (schemas.ScanReport, error) {
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	return scan.NewAPISurfaceScanner(e.query, e.files, e.log).Scan(opts), nil
}

// DetectDuplicates runs the pairwise duplicate sweep. similarityThreshold
// below 0 means "use the configured default". Cancellation returns the
// partial report along with the context error.
func (e *Engine) DetectDuplicates(ctx context.Context, req ScanRequest, similarityThreshold float64) (schemas.ScanReport, error) {
	if similarityThreshold < 0 {
		similarityThreshold = e.scanCfg.SimilarityThreshold
	}
	if similarityThreshold > 1 {
		return schemas.ScanReport{}, fmt.Errorf("similarity threshold %v: %w", similarityThreshold, ErrInvalidInput)
	}
	opts, err := e.scanOptions(req)
	if err != nil {
		return schemas.ScanReport{}, err
	}
	scanner := scan.NewDuplicateScanner(e.query, e.files, e.scanCfg.Parallelism, e.log)
	return scanner.Scan(ctx, opts, similarityThreshold)
}

func parseNodeKinds(names []string) ([]schemas.NodeKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := make([]schemas.NodeKind, 0, len(names))
	for _, name := range names {
		kind, err := schemas.ParseNodeKind(name)
		if err != nil {
			return nil, fmt.Errorf("node kind %q: %w", name, ErrInvalidInput)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func parseEdgeKinds(names []string) ([]schemas.EdgeKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := make([]schemas.EdgeKind, 0, len(names))
	for _, name := range names {
		kind, err := schemas.ParseEdgeKind(name)
		if err != nil {
			return nil, fmt.Errorf("edge kind %q: %w", name, ErrInvalidInput)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
