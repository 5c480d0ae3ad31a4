package graph

import (
	"github.com/cartograph-io/cartograph/api/schemas"
	"go.uber.org/zap"
)

// Transitive computes bounded closures, dependency chains, and cycles over
// the dependency edges of a snapshot. All walks are iterative over explicit
// stacks/queues; real-world call graphs are deeper than a native call stack.
type Transitive struct {
	query *Query
	log   *zap.Logger
}

// NewTransitive builds the analyzer on top of a query engine.
func NewTransitive(query *Query, logger *zap.Logger) *Transitive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transitive{query: query, log: logger.Named("Transitive")}
}

// TransitiveDependency is one edge discovered during closure expansion.
// Depth counts edges crossed from the seed: edges out of the seed itself are
// at depth 1.
type TransitiveDependency struct {
	Source   schemas.NodeID   `json:"source"`
	Target   schemas.NodeID   `json:"target"`
	EdgeKind schemas.EdgeKind `json:"edge_kind"`
	Depth    int              `json:"depth"`
}

// Cycle is one dependency cycle: the node sequence from the re-entered node
// to the point of re-entry.
type Cycle struct {
	Nodes []schemas.NodeID `json:"nodes"`
	Names []string         `json:"names"`
}

// chainEdge reports whether an edge participates in dependency chains and
// cycle detection. Only call and import relationships do.
func chainEdge(kind schemas.EdgeKind) bool {
	return kind == schemas.EdgeKindCalls || kind == schemas.EdgeKindImports
}

// Dependencies expands the closure from seed breadth-first. Each node is
// expanded at most once (global visited set); every filtered edge out of an
// expanded node is recorded with the depth at which it was crossed.
// maxDepth bounds edges crossed, so maxDepth 0 yields no edges at all.
// An empty edgeKinds filter admits every kind.
func (t *Transitive) Dependencies(seed schemas.NodeID, maxDepth int, edgeKinds []schemas.EdgeKind) ([]TransitiveDependency, bool) {
	if _, ok := t.query.Store().GetNode(seed); !ok {
		return nil, false
	}

	admit := func(schemas.EdgeKind) bool { return true }
	if len(edgeKinds) > 0 {
		set := make(map[schemas.EdgeKind]bool, len(edgeKinds))
		for _, k := range edgeKinds {
			set[k] = true
		}
		admit = func(k schemas.EdgeKind) bool { return set[k] }
	}

	type item struct {
		id    schemas.NodeID
		depth int
	}
	deps := []TransitiveDependency{}
	visited := map[schemas.NodeID]bool{seed: true}
	queue := []item{{seed, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range t.query.Store().Outgoing(cur.id) {
			if !admit(edge.Kind) {
				continue
			}
			deps = append(deps, TransitiveDependency{
				Source:   edge.Source,
				Target:   edge.Target,
				EdgeKind: edge.Kind,
				Depth:    cur.depth + 1,
			})
			if !visited[edge.Target] {
				visited[edge.Target] = true
				queue = append(queue, item{edge.Target, cur.depth + 1})
			}
		}
	}
	return deps, true
}

// Chains enumerates maximal call/import paths from seed depth-first. Each
// chain is a sequence of "name:id" labels; a branch ends when the frontier
// node has no further call/import edges, revisits a node already on the
// chain, or maxDepth edges have been crossed.
func (t *Transitive) Chains(seed schemas.NodeID, maxDepth int) ([][]string, bool) {
	store := t.query.Store()
	seedNode, ok := store.GetNode(seed)
	if !ok {
		return nil, false
	}

	label := func(n *schemas.Node) string { return n.Name + ":" + n.ID.Hex() }

	type frame struct {
		id     schemas.NodeID
		chain  []string
		onPath map[schemas.NodeID]bool
	}
	chains := [][]string{}
	stack := []frame{{
		id:     seed,
		chain:  []string{label(seedNode)},
		onPath: map[schemas.NodeID]bool{seed: true},
	}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		extended := false
		if len(top.chain)-1 < maxDepth {
			for _, edge := range store.Outgoing(top.id) {
				if !chainEdge(edge.Kind) || top.onPath[edge.Target] {
					continue
				}
				target, ok := store.GetNode(edge.Target)
				if !ok {
					continue
				}
				extended = true

				chain := make([]string, len(top.chain), len(top.chain)+1)
				copy(chain, top.chain)
				chain = append(chain, label(target))

				onPath := make(map[schemas.NodeID]bool, len(top.onPath)+1)
				for id := range top.onPath {
					onPath[id] = true
				}
				onPath[edge.Target] = true

				stack = append(stack, frame{id: edge.Target, chain: chain, onPath: onPath})
			}
		}
		if !extended && len(top.chain) > 1 {
			chains = append(chains, top.chain)
		}
	}
	return chains, true
}

// DetectCycles runs a single depth-first pass from seed over call/import
// edges, reporting a cycle whenever an edge targets a node currently on the
// recursion stack. The visited set is global across the whole pass: a node
// fully explored on a non-cyclic route is not re-explored, so at most the
// first cycle through any region is reported. That cardinality is part of
// the contract; this is not exhaustive simple-cycle enumeration.
func (t *Transitive) DetectCycles(seed schemas.NodeID) ([]Cycle, bool) {
	store := t.query.Store()
	if _, ok := store.GetNode(seed); !ok {
		return nil, false
	}

	type frame struct {
		id   schemas.NodeID
		next int
	}
	cycles := []Cycle{}
	visited := map[schemas.NodeID]bool{seed: true}
	onStack := map[schemas.NodeID]bool{seed: true}
	stack := []frame{{id: seed}}
	path := []schemas.NodeID{seed}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := store.Outgoing(top.id)

		advanced := false
		for top.next < len(edges) {
			edge := edges[top.next]
			top.next++
			if !chainEdge(edge.Kind) {
				continue
			}
			if onStack[edge.Target] {
				cycles = append(cycles, t.extractCycle(path, edge.Target))
				continue
			}
			if visited[edge.Target] {
				continue
			}
			visited[edge.Target] = true
			onStack[edge.Target] = true
			stack = append(stack, frame{id: edge.Target})
			path = append(path, edge.Target)
			advanced = true
			break
		}
		if !advanced && top.next >= len(edges) {
			onStack[top.id] = false
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}

	t.log.Debug("Cycle detection finished",
		zap.String("seed", seed.Short()),
		zap.Int("cycles", len(cycles)))
	return cycles, true
}

// extractCycle copies the recursion-stack suffix starting at entry.
func (t *Transitive) extractCycle(path []schemas.NodeID, entry schemas.NodeID) Cycle {
	start := 0
	for i, id := range path {
		if id == entry {
			start = i
			break
		}
	}
	cycle := Cycle{
		Nodes: make([]schemas.NodeID, len(path)-start),
		Names: make([]string, 0, len(path)-start),
	}
	copy(cycle.Nodes, path[start:])
	for _, id := range cycle.Nodes {
		if node, ok := t.query.Store().GetNode(id); ok {
			cycle.Names = append(cycle.Names, node.Name)
		}
	}
	return cycle
}
