package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cartograph-io/cartograph/api/schemas"
	"go.uber.org/zap"
)

// Query answers symbol-level dependency, reference, path, search, and
// inheritance questions against a Store.
type Query struct {
	store *Store
	log   *zap.Logger
}

// NewQuery builds a query engine over the given store.
func NewQuery(store *Store, logger *zap.Logger) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{store: store, log: logger.Named("GraphQuery")}
}

// Store exposes the underlying store to the higher-level analyzers.
func (q *Query) Store() *Store { return q.store }

// Dependency is one outgoing relationship of a node.
type Dependency struct {
	Target   *schemas.Node    `json:"target"`
	EdgeKind schemas.EdgeKind `json:"edge_kind"`
}

// Reference is one incoming relationship of a node, annotated with the site
// where the use occurs.
type Reference struct {
	Source   *schemas.Node    `json:"source"`
	EdgeKind schemas.EdgeKind `json:"edge_kind"`
	File     string           `json:"file"`
	Location schemas.Span     `json:"location"`
}

// PathResult is a shortest path between two nodes. Distance counts edges
// crossed, so a path of n nodes has distance n-1.
type PathResult struct {
	Distance int                `json:"distance"`
	Path     []schemas.NodeID   `json:"path"`
	Edges    []schemas.EdgeKind `json:"edges"`
}

// SymbolInfo is one symbol-search hit annotated with its graph degree.
type SymbolInfo struct {
	Node         *schemas.Node `json:"node"`
	References   int           `json:"references"`
	Dependencies int           `json:"dependencies"`
}

// InheritanceInfo describes a class node's inheritance relationships.
type InheritanceInfo struct {
	ClassName        string     `json:"class_name"`
	IsMetaclass      bool       `json:"is_metaclass"`
	BaseClasses      []string   `json:"base_classes"`
	Subclasses       []string   `json:"subclasses"`
	Mixins           []string   `json:"mixins"`
	Metaclass        string     `json:"metaclass,omitempty"`
	ResolutionOrder  []string   `json:"resolution_order"`
	InheritanceChain [][]string `json:"inheritance_chain"`
}

// IsValidDependencyNode filters out extractor artifacts: Call-kind nodes
// whose name is empty, whitespace, bare punctuation, or otherwise free of
// alphanumeric/underscore characters. Every non-Call kind is always valid.
func IsValidDependencyNode(node *schemas.Node) bool {
	if node.Kind != schemas.NodeKindCall {
		return true
	}
	name := strings.TrimSpace(node.Name)
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// FindDependencies lists the outgoing edges of a node filtered by dependency
// type, excluding invalid Call-kind targets.
func (q *Query) FindDependencies(id schemas.NodeID, depType schemas.DependencyType) ([]Dependency, bool) {
	if _, ok := q.store.GetNode(id); !ok {
		return nil, false
	}
	deps := make([]Dependency, 0)
	for _, edge := range q.store.Outgoing(id) {
		if !depType.Matches(edge.Kind) {
			continue
		}
		target, ok := q.store.GetNode(edge.Target)
		if !ok || !IsValidDependencyNode(target) {
			continue
		}
		deps = append(deps, Dependency{Target: target, EdgeKind: edge.Kind})
	}
	return deps, true
}

// FindReferences lists the incoming edges of a node with their use sites.
func (q *Query) FindReferences(id schemas.NodeID) ([]Reference, bool) {
	if _, ok := q.store.GetNode(id); !ok {
		return nil, false
	}
	refs := make([]Reference, 0)
	for _, edge := range q.store.Incoming(id) {
		source, ok := q.store.GetNode(edge.Source)
		if !ok {
			continue
		}
		refs = append(refs, Reference{
			Source:   source,
			EdgeKind: edge.Kind,
			File:     source.File,
			Location: source.Span,
		})
	}
	return refs, true
}

// FindPath runs an unweighted breadth-first shortest-path search from source
// to target over all edge kinds, crossing at most maxDepth edges. It returns
// nil when target is unreachable within the bound.
//
// Determinism: neighbors expand in ascending (edge-kind wire string, target
// id hex) order, so among equal-length paths the one whose edge sequence is
// lexicographically smallest at the earliest divergence is returned.
func (q *Query) FindPath(source, target schemas.NodeID, maxDepth int) *PathResult {
	if _, ok := q.store.GetNode(source); !ok {
		return nil
	}
	if _, ok := q.store.GetNode(target); !ok {
		return nil
	}
	if source == target {
		return &PathResult{Distance: 0, Path: []schemas.NodeID{source}, Edges: []schemas.EdgeKind{}}
	}

	parents := map[schemas.NodeID]hop{}
	visited := map[schemas.NodeID]bool{source: true}

	type item struct {
		id    schemas.NodeID
		depth int
	}
	queue := []item{{source, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range q.store.Outgoing(cur.id) {
			if visited[edge.Target] {
				continue
			}
			visited[edge.Target] = true
			parents[edge.Target] = hop{parent: cur.id, via: edge.Kind}
			if edge.Target == target {
				return q.reconstructPath(source, target, parents)
			}
			queue = append(queue, item{edge.Target, cur.depth + 1})
		}
	}
	return nil
}

// hop records how BFS first reached a node, for path reconstruction.
type hop struct {
	parent schemas.NodeID
	via    schemas.EdgeKind
}

func (q *Query) reconstructPath(source, target schemas.NodeID, parents map[schemas.NodeID]hop) *PathResult {
	path := []schemas.NodeID{target}
	edges := []schemas.EdgeKind{}
	cur := target
	for cur != source {
		h := parents[cur]
		edges = append(edges, h.via)
		cur = h.parent
		path = append(path, cur)
	}
	// Reverse into source-to-target order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return &PathResult{Distance: len(edges), Path: path, Edges: edges}
}

// SymbolFilter restricts symbol-search hits structurally.
type SymbolFilter struct {
	// InheritsFrom keeps only nodes with an outgoing Extends edge to a node
	// with this exact name.
	InheritsFrom string
	// InFile keeps only nodes whose file path contains this substring.
	InFile string
}

// SearchSymbols matches node names against pattern, optionally restricted by
// kind and structural filters, returning at most limit hits ranked by name
// then id. The pattern is compiled as a regular expression; when compilation
// fails it degrades to a case-insensitive substring match.
func (q *Query) SearchSymbols(pattern string, kinds []schemas.NodeKind, filter SymbolFilter, limit int) []SymbolInfo {
	match := func(name string) bool {
		return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
	}
	if re, err := regexp.Compile(pattern); err == nil {
		match = re.MatchString
	} else {
		q.log.Debug("Pattern is not a valid regex, using substring match",
			zap.String("pattern", pattern), zap.Error(err))
	}

	kindSet := map[schemas.NodeKind]bool{}
	for _, k := range kinds {
		kindSet[k] = true
	}

	hits := make([]SymbolInfo, 0)
	for _, id := range q.store.AllNodeIDs() {
		node, _ := q.store.GetNode(id)
		if len(kindSet) > 0 && !kindSet[node.Kind] {
			continue
		}
		if !match(node.Name) {
			continue
		}
		if filter.InFile != "" && !strings.Contains(node.File, filter.InFile) {
			continue
		}
		if filter.InheritsFrom != "" && !q.inheritsFrom(id, filter.InheritsFrom) {
			continue
		}
		hits = append(hits, SymbolInfo{
			Node:         node,
			References:   len(q.store.Incoming(id)),
			Dependencies: len(q.store.Outgoing(id)),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Node.Name != hits[j].Node.Name {
			return hits[i].Node.Name < hits[j].Node.Name
		}
		return hits[i].Node.ID.Hex() < hits[j].Node.ID.Hex()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (q *Query) inheritsFrom(id schemas.NodeID, baseName string) bool {
	for _, edge := range q.store.Outgoing(id) {
		if edge.Kind != schemas.EdgeKindExtends {
			continue
		}
		if base, ok := q.store.GetNode(edge.Target); ok && base.Name == baseName {
			return true
		}
	}
	return false
}

// GetInheritanceInfo describes the inheritance relationships of a class-kind
// node. The second return is false when the id is unknown or not a class.
func (q *Query) GetInheritanceInfo(id schemas.NodeID) (*InheritanceInfo, bool) {
	node, ok := q.store.GetNode(id)
	if !ok || node.Kind != schemas.NodeKindClass {
		return nil, false
	}

	info := &InheritanceInfo{
		ClassName:        node.Name,
		IsMetaclass:      isMetaclass(node),
		BaseClasses:      []string{},
		Subclasses:       []string{},
		Mixins:           []string{},
		ResolutionOrder:  []string{},
		InheritanceChain: [][]string{},
	}

	for _, edge := range q.store.Outgoing(id) {
		if edge.Kind != schemas.EdgeKindExtends {
			continue
		}
		base, ok := q.store.GetNode(edge.Target)
		if !ok {
			continue
		}
		if isMetaclass(base) {
			info.Metaclass = base.Name
			continue
		}
		info.BaseClasses = append(info.BaseClasses, base.Name)
		if strings.Contains(base.Name, "Mixin") {
			info.Mixins = append(info.Mixins, base.Name)
		}
	}

	for _, edge := range q.store.Incoming(id) {
		if edge.Kind != schemas.EdgeKindExtends {
			continue
		}
		if sub, ok := q.store.GetNode(edge.Source); ok {
			info.Subclasses = append(info.Subclasses, sub.Name)
		}
	}

	info.ResolutionOrder = q.resolutionOrder(id)
	info.InheritanceChain = q.inheritanceChains(id)
	return info, true
}

// isMetaclass checks the extractor's metadata flag, falling back to the
// Python naming convention.
func isMetaclass(node *schemas.Node) bool {
	if node.MetaBool("is_metaclass") {
		return true
	}
	return strings.HasSuffix(node.Name, "Meta") || strings.HasPrefix(node.Name, "Meta")
}

// resolutionOrder approximates the method resolution order: the class
// itself, then its ancestors in breadth-first Extends order.
func (q *Query) resolutionOrder(id schemas.NodeID) []string {
	order := []string{}
	visited := map[schemas.NodeID]bool{id: true}
	queue := []schemas.NodeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node, ok := q.store.GetNode(cur)
		if !ok {
			continue
		}
		order = append(order, node.Name)
		for _, edge := range q.store.Outgoing(cur) {
			if edge.Kind != schemas.EdgeKindExtends || visited[edge.Target] {
				continue
			}
			visited[edge.Target] = true
			queue = append(queue, edge.Target)
		}
	}
	return order
}

// inheritanceChains enumerates every root-to-class chain up the Extends
// hierarchy with an explicit stack, each chain listed base-first.
func (q *Query) inheritanceChains(id schemas.NodeID) [][]string {
	type frame struct {
		id    schemas.NodeID
		chain []string
	}
	chains := [][]string{}
	node, ok := q.store.GetNode(id)
	if !ok {
		return chains
	}
	stack := []frame{{id: id, chain: []string{node.Name}}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		extended := false
		for _, edge := range q.store.Outgoing(top.id) {
			if edge.Kind != schemas.EdgeKindExtends {
				continue
			}
			base, ok := q.store.GetNode(edge.Target)
			if !ok {
				continue
			}
			// Cycle guard: stop extending a chain that revisits a name.
			if containsString(top.chain, base.Name) {
				continue
			}
			extended = true
			next := make([]string, len(top.chain), len(top.chain)+1)
			copy(next, top.chain)
			next = append(next, base.Name)
			stack = append(stack, frame{id: edge.Target, chain: next})
		}
		if !extended && len(top.chain) > 1 {
			// Report base-first.
			reversed := make([]string, len(top.chain))
			for i, name := range top.chain {
				reversed[len(top.chain)-1-i] = name
			}
			chains = append(chains, reversed)
		}
	}
	sort.Slice(chains, func(i, j int) bool {
		return strings.Join(chains[i], "<") < strings.Join(chains[j], "<")
	})
	return chains
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
