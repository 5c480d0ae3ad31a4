package graph

import (
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTransitive(t *testing.T, b *builder) *Transitive {
	t.Helper()
	return NewTransitive(newTestQuery(t, b), zap.NewNop())
}

func TestTransitiveDependencies(t *testing.T) {
	t.Parallel()

	t.Run("zero depth crosses no edges", func(t *testing.T) {
		b := callGraph()
		tr := newTestTransitive(t, b)

		deps, ok := tr.Dependencies(b.ids["main"], 0, nil)
		require.True(t, ok)
		assert.Empty(t, deps, "max_depth bounds edges crossed, so 0 yields the seed only")
	})

	t.Run("depth recorded per edge", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("b", schemas.NodeKindFunction, "b.py")
		b.node("c", schemas.NodeKindFunction, "c.py")
		b.edge("a", "b", schemas.EdgeKindCalls)
		b.edge("b", "c", schemas.EdgeKindImports)
		tr := newTestTransitive(t, b)

		deps, ok := tr.Dependencies(b.ids["a"], 5, nil)
		require.True(t, ok)
		require.Len(t, deps, 2)
		assert.Equal(t, 1, deps[0].Depth)
		assert.Equal(t, b.ids["b"], deps[0].Target)
		assert.Equal(t, 2, deps[1].Depth)
		assert.Equal(t, b.ids["c"], deps[1].Target)
	})

	t.Run("cycle terminates via global visited set", func(t *testing.T) {
		b := callGraph()
		tr := newTestTransitive(t, b)

		deps, ok := tr.Dependencies(b.ids["main"], 10, nil)
		require.True(t, ok)
		// main->helper at depth 1, helper->main at depth 2; nothing further
		// since both nodes were already expanded.
		require.Len(t, deps, 2)
	})

	t.Run("edge kind filter", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("b", schemas.NodeKindFunction, "b.py")
		b.node("v", schemas.NodeKindVariable, "a.py")
		b.edge("a", "b", schemas.EdgeKindCalls)
		b.edge("a", "v", schemas.EdgeKindReads)
		tr := newTestTransitive(t, b)

		deps, ok := tr.Dependencies(b.ids["a"], 5, []schemas.EdgeKind{schemas.EdgeKindCalls})
		require.True(t, ok)
		require.Len(t, deps, 1)
		assert.Equal(t, schemas.EdgeKindCalls, deps[0].EdgeKind)
	})

	t.Run("unknown seed", func(t *testing.T) {
		b := callGraph()
		tr := newTestTransitive(t, b)
		_, ok := tr.Dependencies(schemas.NodeID{}, 5, nil)
		assert.False(t, ok)
	})
}

func TestDependencyChains(t *testing.T) {
	t.Parallel()

	t.Run("labels and termination", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("b", schemas.NodeKindFunction, "b.py")
		b.node("c", schemas.NodeKindFunction, "c.py")
		b.node("v", schemas.NodeKindVariable, "a.py")
		b.edge("a", "b", schemas.EdgeKindCalls)
		b.edge("b", "c", schemas.EdgeKindImports)
		b.edge("a", "v", schemas.EdgeKindReads) // not a chain edge
		tr := newTestTransitive(t, b)

		chains, ok := tr.Chains(b.ids["a"], 10)
		require.True(t, ok)
		require.Len(t, chains, 1)
		assert.Equal(t, []string{
			"a:" + b.ids["a"].Hex(),
			"b:" + b.ids["b"].Hex(),
			"c:" + b.ids["c"].Hex(),
		}, chains[0])
	})

	t.Run("depth bound truncates chains", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("b", schemas.NodeKindFunction, "b.py")
		b.node("c", schemas.NodeKindFunction, "c.py")
		b.edge("a", "b", schemas.EdgeKindCalls)
		b.edge("b", "c", schemas.EdgeKindCalls)
		tr := newTestTransitive(t, b)

		chains, ok := tr.Chains(b.ids["a"], 1)
		require.True(t, ok)
		require.Len(t, chains, 1)
		assert.Len(t, chains[0], 2)
	})

	t.Run("cycle does not loop forever", func(t *testing.T) {
		b := callGraph()
		tr := newTestTransitive(t, b)

		chains, ok := tr.Chains(b.ids["main"], 10)
		require.True(t, ok)
		require.Len(t, chains, 1)
		assert.Len(t, chains[0], 2, "chain stops where it would revisit a node")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Parallel()

	t.Run("two node cycle", func(t *testing.T) {
		b := callGraph()
		tr := newTestTransitive(t, b)

		cycles, ok := tr.DetectCycles(b.ids["main"])
		require.True(t, ok)
		require.Len(t, cycles, 1)
		assert.ElementsMatch(t, []schemas.NodeID{b.ids["main"], b.ids["helper"]}, cycles[0].Nodes)
		assert.ElementsMatch(t, []string{"main", "helper"}, cycles[0].Names)
	})

	t.Run("acyclic graph", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("b", schemas.NodeKindFunction, "b.py")
		b.edge("a", "b", schemas.EdgeKindCalls)
		tr := newTestTransitive(t, b)

		cycles, ok := tr.DetectCycles(b.ids["a"])
		require.True(t, ok)
		assert.Empty(t, cycles)
	})

	t.Run("self loop", func(t *testing.T) {
		b := newBuilder()
		b.node("rec", schemas.NodeKindFunction, "rec.py")
		b.edge("rec", "rec", schemas.EdgeKindCalls)
		tr := newTestTransitive(t, b)

		cycles, ok := tr.DetectCycles(b.ids["rec"])
		require.True(t, ok)
		require.Len(t, cycles, 1)
		assert.Equal(t, []schemas.NodeID{b.ids["rec"]}, cycles[0].Nodes)
	})

	t.Run("non chain edges are ignored", func(t *testing.T) {
		b := newBuilder()
		b.node("a", schemas.NodeKindFunction, "a.py")
		b.node("v", schemas.NodeKindVariable, "a.py")
		b.edge("a", "v", schemas.EdgeKindReads)
		b.edge("v", "a", schemas.EdgeKindWrites)
		tr := newTestTransitive(t, b)

		cycles, ok := tr.DetectCycles(b.ids["a"])
		require.True(t, ok)
		assert.Empty(t, cycles, "cycle detection follows only call/import edges")
	})
}
