package engine

// Per-operation option structs. Every recognized option and its default is
// explicit here; enum-valued fields are validated strictly at call time and
// unknown values are rejected as ErrInvalidInput instead of silently falling
// back to a default.

// PathOptions configures FindPath.
type PathOptions struct {
	// MaxDepth bounds the number of edges a path may cross.
	MaxDepth int
}

// DefaultPathOptions returns the documented defaults.
func DefaultPathOptions() PathOptions {
	return PathOptions{MaxDepth: 10}
}

// SearchOptions configures SearchSymbols.
type SearchOptions struct {
	// Kinds restricts matches to these node kinds (wire strings); empty
	// means all kinds.
	Kinds []string
	// InheritsFrom keeps only classes that extend the named base.
	InheritsFrom string
	// InFile keeps only symbols declared in the given file.
	InFile string
	// Limit caps the ranked result list.
	Limit int
}

// DefaultSearchOptions returns the documented defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: 50}
}

// TransitiveOptions configures TransitiveDependencies.
type TransitiveOptions struct {
	// MaxDepth bounds the number of edges crossed from the seed; 0 means
	// the seed only.
	MaxDepth int
	// EdgeKinds restricts the traversal to these edge kinds (wire
	// strings); empty means all kinds.
	EdgeKinds []string
	// DetectCycles also runs cycle detection from the seed.
	DetectCycles bool
}

// DefaultTransitiveOptions returns the documented defaults.
func DefaultTransitiveOptions() TransitiveOptions {
	return TransitiveOptions{MaxDepth: 5, DetectCycles: true}
}

// TraceOptions configures TraceDataFlow.
type TraceOptions struct {
	// Direction is "forward", "backward", or "both".
	Direction string
	// MaxDepth bounds the number of flow edges followed.
	MaxDepth int
	// FollowCalls includes call edges as flow conduits.
	FollowCalls bool
}

// DefaultTraceOptions returns the documented defaults.
func DefaultTraceOptions() TraceOptions {
	return TraceOptions{Direction: "forward", MaxDepth: 10, FollowCalls: true}
}

// ComplexityOptions configures AnalyzeComplexity.
type ComplexityOptions struct {
	// Metrics names the metric families to report: "lines", "cyclomatic",
	// "cognitive", "halstead", "maintainability". Empty means all.
	Metrics []string
	// WarnOnThreshold attaches threshold warnings to each report.
	WarnOnThreshold bool
}

// DefaultComplexityOptions returns the documented defaults.
func DefaultComplexityOptions() ComplexityOptions {
	return ComplexityOptions{WarnOnThreshold: true}
}

// ScanRequest configures the heuristic scanners. Zero values mean "no
// restriction"; the engine fills thresholds from ScanConfig when unset.
type ScanRequest struct {
	// ScopeFile restricts the scan to one file.
	ScopeFile string
	// Types restricts which detector rules run; empty runs all.
	Types []string
	// ConfidenceThreshold drops findings scored below it; negative means
	// "use the configured default".
	ConfidenceThreshold float64
	// MinSeverity drops findings below this tier; empty means "use the
	// configured default".
	MinSeverity string
}

// DefaultScanRequest returns a request that defers both thresholds to the
// engine's ScanConfig.
func DefaultScanRequest() ScanRequest {
	return ScanRequest{ConfidenceThreshold: -1}
}
