package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memReader map[string]string

func (m memReader) ReadText(path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", errors.New("unreadable: " + path)
	}
	return text, nil
}

// builder assembles engine test snapshots keyed by symbol name.
type builder struct {
	nodes []schemas.Node
	edges []schemas.Edge
	ids   map[string]schemas.NodeID
	line  int
}

func newBuilder() *builder {
	return &builder{ids: make(map[string]schemas.NodeID)}
}

func (b *builder) node(name string, kind schemas.NodeKind, file string) schemas.NodeID {
	b.line += 8
	return b.nodeAt(name, kind, file, b.line, b.line+5)
}

func (b *builder) nodeAt(name string, kind schemas.NodeKind, file string, startLine, endLine int) schemas.NodeID {
	span := schemas.Span{StartLine: startLine, StartColumn: 1, EndLine: endLine, EndColumn: 1}
	node := schemas.Node{
		ID:       schemas.NewNodeID("engine-repo", file, span, kind),
		Kind:     kind,
		Name:     name,
		Language: "python",
		File:     file,
		Span:     span,
	}
	b.nodes = append(b.nodes, node)
	b.ids[name] = node.ID
	return node.ID
}

func (b *builder) edge(source, target string, kind schemas.EdgeKind) {
	b.edges = append(b.edges, schemas.Edge{Source: b.ids[source], Target: b.ids[target], Kind: kind})
}

func (b *builder) engine(t *testing.T, files memReader) *Engine {
	t.Helper()
	snap := schemas.Snapshot{RepoID: "engine-repo", Nodes: b.nodes, Edges: b.edges}
	return New(snap, config.NewDefaultConfig(), files, zap.NewNop())
}

func standardGraph() *builder {
	b := newBuilder()
	b.node("main", schemas.NodeKindFunction, "src/app.py")
	b.node("helper", schemas.NodeKindFunction, "src/app.py")
	b.node("config_var", schemas.NodeKindVariable, "src/settings.py")
	b.node("Base", schemas.NodeKindClass, "src/models.py")
	b.node("Model", schemas.NodeKindClass, "src/models.py")
	b.node("orphan", schemas.NodeKindFunction, "src/stale.py")
	b.edge("main", "helper", schemas.EdgeKindCalls)
	b.edge("helper", "main", schemas.EdgeKindCalls)
	b.edge("main", "config_var", schemas.EdgeKindReads)
	b.edge("Model", "Base", schemas.EdgeKindExtends)
	return b
}

func TestEngineResolve(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	t.Run("by id", func(t *testing.T) {
		node, err := e.Resolve(TargetRef{ID: b.ids["main"].Hex()})
		require.NoError(t, err)
		assert.Equal(t, "main", node.Name)
	})

	t.Run("by name", func(t *testing.T) {
		node, err := e.Resolve(TargetRef{Name: "helper"})
		require.NoError(t, err)
		assert.Equal(t, b.ids["helper"], node.ID)
	})

	t.Run("name narrowed by file", func(t *testing.T) {
		node, err := e.Resolve(TargetRef{Name: "orphan", File: "src/stale.py"})
		require.NoError(t, err)
		assert.Equal(t, "src/stale.py", node.File)

		_, err = e.Resolve(TargetRef{Name: "orphan", File: "src/other.py"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := e.Resolve(TargetRef{ID: "zz-not-hex"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), "zz-not-hex")
	})

	t.Run("absent id", func(t *testing.T) {
		_, err := e.Resolve(TargetRef{ID: "00000000000000000000000000000000"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty ref", func(t *testing.T) {
		_, err := e.Resolve(TargetRef{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("ambiguous name resolves deterministically", func(t *testing.T) {
		dup := standardGraph()
		dup.node("shared", schemas.NodeKindFunction, "src/one.py")
		dup.node("shared", schemas.NodeKindFunction, "src/two.py")
		engineDup := dup.engine(t, memReader{})

		first, err := engineDup.Resolve(TargetRef{Name: "shared"})
		require.NoError(t, err)
		second, err := engineDup.Resolve(TargetRef{Name: "shared"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})
}

func TestEngineFindDependencies(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	deps, err := e.FindDependencies(TargetRef{Name: "main"}, "")
	require.NoError(t, err)
	assert.Len(t, deps, 2, "empty dependency type means direct")

	reads, err := e.FindDependencies(TargetRef{Name: "main"}, "reads")
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.Equal(t, "config_var", reads[0].Target.Name)

	_, err = e.FindDependencies(TargetRef{Name: "main"}, "transitive")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngineFindDependencies_FileTarget(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	t.Run("unions every node in the file", func(t *testing.T) {
		deps, err := e.FindDependencies(TargetRef{File: "src/app.py"}, "direct")
		require.NoError(t, err)
		require.Len(t, deps, 3)

		names := make([]string, 0, len(deps))
		for _, dep := range deps {
			names = append(names, dep.Target.Name)
		}
		assert.ElementsMatch(t, []string{"main", "helper", "config_var"}, names)
	})

	t.Run("honors the dependency type filter", func(t *testing.T) {
		reads, err := e.FindDependencies(TargetRef{File: "src/app.py"}, "reads")
		require.NoError(t, err)
		require.Len(t, reads, 1)
		assert.Equal(t, "config_var", reads[0].Target.Name)
	})

	t.Run("deduplicates shared targets", func(t *testing.T) {
		shared := standardGraph()
		shared.edge("helper", "config_var", schemas.EdgeKindReads)
		engineShared := shared.engine(t, memReader{})

		reads, err := engineShared.FindDependencies(TargetRef{File: "src/app.py"}, "reads")
		require.NoError(t, err)
		require.Len(t, reads, 1, "main and helper both read config_var; the union lists it once")
		assert.Equal(t, "config_var", reads[0].Target.Name)
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := e.FindDependencies(TargetRef{File: "src/ghost.py"}, "direct")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "src/ghost.py")
	})
}

func TestEngineFindPath(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	t.Run("found", func(t *testing.T) {
		result, err := e.FindPath(TargetRef{Name: "main"}, TargetRef{Name: "helper"}, DefaultPathOptions())
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 1, result.Distance)
	})

	t.Run("unreachable is none, not an error", func(t *testing.T) {
		result, err := e.FindPath(TargetRef{Name: "main"}, TargetRef{Name: "orphan"}, DefaultPathOptions())
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := e.FindPath(TargetRef{Name: "main"}, TargetRef{Name: "helper"}, PathOptions{MaxDepth: -1})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("depth capped by config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		cfg.SetEngineMaxTraversalDepth(1)
		capped := New(schemas.Snapshot{RepoID: "engine-repo", Nodes: b.nodes, Edges: b.edges}, cfg, memReader{}, zap.NewNop())

		result, err := capped.FindPath(TargetRef{Name: "orphan"}, TargetRef{Name: "main"}, PathOptions{MaxDepth: 500})
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestEngineSearchSymbols(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	hits, err := e.SearchSymbols("^ma", DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "main", hits[0].Node.Name)

	_, err = e.SearchSymbols("", DefaultSearchOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.SearchSymbols("x", SearchOptions{Kinds: []string{"gadget"}, Limit: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngineInheritanceInfo(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	info, err := e.GetInheritanceInfo(TargetRef{Name: "Model"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Base"}, info.BaseClasses)

	_, err = e.GetInheritanceInfo(TargetRef{Name: "main"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEngineTransitiveDependencies(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	result, err := e.TransitiveDependencies(TargetRef{Name: "main"}, DefaultTransitiveOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Dependencies)
	require.Len(t, result.Cycles, 1, "main and helper call each other")

	noCycles, err := e.TransitiveDependencies(TargetRef{Name: "main"}, TransitiveOptions{MaxDepth: 5})
	require.NoError(t, err)
	assert.Empty(t, noCycles.Cycles)

	_, err = e.TransitiveDependencies(TargetRef{Name: "main"}, TransitiveOptions{MaxDepth: 5, EdgeKinds: []string{"INVOKES"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngineTraceDataFlow(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	result, err := e.TraceDataFlow(TargetRef{Name: "main"}, DefaultTraceOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Forward)

	_, err = e.TraceDataFlow(TargetRef{Name: "main"}, TraceOptions{Direction: "sideways", MaxDepth: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "sideways")
}

const appSource = `def main():
    if ready:
        helper()
    return 0

def helper():
    x = y + z
    return x
`

func complexityEngine(t *testing.T) *Engine {
	t.Helper()
	b := newBuilder()
	b.nodeAt("main", schemas.NodeKindFunction, "src/app.py", 1, 4)
	b.nodeAt("helper", schemas.NodeKindFunction, "src/app.py", 6, 8)
	return b.engine(t, memReader{"src/app.py": appSource})
}

func TestEngineAnalyzeComplexity(t *testing.T) {
	t.Parallel()

	e := complexityEngine(t)

	t.Run("single symbol", func(t *testing.T) {
		results, err := e.AnalyzeComplexity(TargetRef{Name: "main"}, DefaultComplexityOptions())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 2, results[0].Metrics.Cyclomatic, "one if branch")
		assert.Equal(t, 4, results[0].Metrics.Lines)
	})

	t.Run("whole file analyzes each function", func(t *testing.T) {
		results, err := e.AnalyzeComplexity(TargetRef{File: "src/app.py"}, DefaultComplexityOptions())
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("metric selection blanks the rest", func(t *testing.T) {
		opts := ComplexityOptions{Metrics: []string{"cyclomatic"}, WarnOnThreshold: true}
		results, err := e.AnalyzeComplexity(TargetRef{Name: "main"}, opts)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 2, results[0].Metrics.Cyclomatic)
		assert.Zero(t, results[0].Metrics.Lines)
		assert.Zero(t, results[0].Metrics.Maintainability)
	})

	t.Run("unknown metric name", func(t *testing.T) {
		_, err := e.AnalyzeComplexity(TargetRef{Name: "main"}, ComplexityOptions{Metrics: []string{"depth"}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unreadable file", func(t *testing.T) {
		b := newBuilder()
		b.nodeAt("ghost", schemas.NodeKindFunction, "src/missing.py", 1, 4)
		broken := b.engine(t, memReader{})
		_, err := broken.AnalyzeComplexity(TargetRef{Name: "ghost"}, DefaultComplexityOptions())
		assert.ErrorIs(t, err, ErrIOFailure)
	})

	t.Run("no target", func(t *testing.T) {
		_, err := e.AnalyzeComplexity(TargetRef{}, DefaultComplexityOptions())
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestEngineScanOperations(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	b.node("eval_input", schemas.NodeKindFunction, "src/danger.py")
	e := b.engine(t, memReader{})

	t.Run("security", func(t *testing.T) {
		report, err := e.AnalyzeSecurity(DefaultScanRequest())
		require.NoError(t, err)
		require.NotEmpty(t, report.Findings)
		assert.NotNil(t, report.SecurityScore)
	})

	t.Run("unused", func(t *testing.T) {
		report, err := e.FindUnusedCode(DefaultScanRequest())
		require.NoError(t, err)
		assert.NotEmpty(t, report.Findings)
	})

	t.Run("invalid severity", func(t *testing.T) {
		req := DefaultScanRequest()
		req.MinSeverity = "catastrophic"
		_, err := e.AnalyzeSecurity(req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("invalid confidence", func(t *testing.T) {
		req := DefaultScanRequest()
		req.ConfidenceThreshold = 1.5
		_, err := e.DetectPatterns(req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestEngineDetectDuplicates(t *testing.T) {
	t.Parallel()

	body := "def run():\n    step_one()\n    step_two()\n"
	b := newBuilder()
	b.node("run_a", schemas.NodeKindFunction, "src/a.py")
	b.node("run_b", schemas.NodeKindFunction, "src/b.py")
	e := b.engine(t, memReader{"src/a.py": body, "src/b.py": body})

	report, err := e.DetectDuplicates(context.Background(), DefaultScanRequest(), -1)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1, "identical files clear the configured 0.8 default")

	_, err = e.DetectDuplicates(context.Background(), DefaultScanRequest(), 1.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngineStats(t *testing.T) {
	t.Parallel()

	b := standardGraph()
	e := b.engine(t, memReader{})

	stats := e.Stats()
	assert.Equal(t, 6, stats.TotalNodes)
	assert.Equal(t, 4, stats.TotalEdges)
	assert.Equal(t, "engine-repo", e.RepoID())
}
