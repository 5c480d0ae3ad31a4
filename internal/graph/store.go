// Package graph holds the indexed symbol-graph store and the traversal
// engines built on top of it: dependency/reference/path queries, transitive
// closure and cycle detection, and directional data-flow tracing.
package graph

import (
	"sort"

	"github.com/cartograph-io/cartograph/api/schemas"
	"go.uber.org/zap"
)

// Store is the read-only, indexed container for one repository snapshot.
// It is built once from a finished snapshot and never mutated afterwards, so
// any number of concurrent queries may share it without locking.
type Store struct {
	repoID string

	nodes map[schemas.NodeID]*schemas.Node

	// outgoing and incoming are the forward and reverse adjacency indexes.
	// Both are required: "what does X depend on" walks outgoing, "who depends
	// on X" walks incoming.
	outgoing map[schemas.NodeID][]schemas.Edge
	incoming map[schemas.NodeID][]schemas.Edge

	byFile map[string][]schemas.NodeID
	byName map[string][]schemas.NodeID
	byKind map[schemas.NodeKind][]schemas.NodeID

	edgeCount int

	log *zap.Logger
}

// Stats are the aggregate counts for a snapshot.
type Stats struct {
	TotalNodes   int                      `json:"total_nodes"`
	TotalEdges   int                      `json:"total_edges"`
	TotalFiles   int                      `json:"total_files"`
	NodesPerKind map[schemas.NodeKind]int `json:"nodes_per_kind"`
}

// NewStore indexes a snapshot. Duplicate edges are collapsed; edges whose
// source or target is not present in the snapshot are dropped with a warning
// rather than failing the whole load, since one extractor artifact must not
// make an entire repository unqueryable.
func NewStore(snapshot schemas.Snapshot, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		repoID:   snapshot.RepoID,
		nodes:    make(map[schemas.NodeID]*schemas.Node, len(snapshot.Nodes)),
		outgoing: make(map[schemas.NodeID][]schemas.Edge),
		incoming: make(map[schemas.NodeID][]schemas.Edge),
		byFile:   make(map[string][]schemas.NodeID),
		byName:   make(map[string][]schemas.NodeID),
		byKind:   make(map[schemas.NodeKind][]schemas.NodeID),
		log:      logger.Named("GraphStore"),
	}

	for i := range snapshot.Nodes {
		node := snapshot.Nodes[i]
		s.nodes[node.ID] = &node
		s.byFile[node.File] = append(s.byFile[node.File], node.ID)
		s.byName[node.Name] = append(s.byName[node.Name], node.ID)
		s.byKind[node.Kind] = append(s.byKind[node.Kind], node.ID)
	}

	seen := make(map[string]bool, len(snapshot.Edges))
	dangling := 0
	for _, edge := range snapshot.Edges {
		if _, ok := s.nodes[edge.Source]; !ok {
			dangling++
			continue
		}
		if _, ok := s.nodes[edge.Target]; !ok {
			dangling++
			continue
		}
		key := edge.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		s.outgoing[edge.Source] = append(s.outgoing[edge.Source], edge)
		s.incoming[edge.Target] = append(s.incoming[edge.Target], edge)
		s.edgeCount++
	}

	// Deterministic adjacency order: traversals expand neighbors in ascending
	// (edge-kind wire string, target id hex) order, which fixes the shortest
	// path tie-break. Sorting once here keeps every query allocation-free.
	for id := range s.outgoing {
		sortEdges(s.outgoing[id], false)
	}
	for id := range s.incoming {
		sortEdges(s.incoming[id], true)
	}

	if dangling > 0 {
		s.log.Warn("Dropped dangling edges from snapshot",
			zap.Int("count", dangling),
			zap.String("repo_id", snapshot.RepoID))
	}
	s.log.Debug("Snapshot indexed",
		zap.Int("nodes", len(s.nodes)),
		zap.Int("edges", s.edgeCount),
		zap.Int("files", len(s.byFile)))
	return s
}

// sortEdges orders edges by (kind wire string, far-endpoint hex). For the
// incoming index the far endpoint is the source.
func sortEdges(edges []schemas.Edge, bySource bool) {
	sort.Slice(edges, func(i, j int) bool {
		ki, kj := edges[i].Kind.String(), edges[j].Kind.String()
		if ki != kj {
			return ki < kj
		}
		if bySource {
			return edges[i].Source.Hex() < edges[j].Source.Hex()
		}
		return edges[i].Target.Hex() < edges[j].Target.Hex()
	})
}

// RepoID returns the snapshot's repository identifier.
func (s *Store) RepoID() string { return s.repoID }

// GetNode looks a node up by id. The second return is false when the id is
// unknown; lookups never fail a query outright.
func (s *Store) GetNode(id schemas.NodeID) (*schemas.Node, bool) {
	node, ok := s.nodes[id]
	return node, ok
}

// NodesByKind returns the ids of every node of the given kind.
func (s *Store) NodesByKind(kind schemas.NodeKind) []schemas.NodeID {
	return s.byKind[kind]
}

// NodesInFile returns the ids of every node whose file equals path.
func (s *Store) NodesInFile(path string) []schemas.NodeID {
	return s.byFile[path]
}

// NodesByName returns the ids of every node with exactly the given name.
func (s *Store) NodesByName(name string) []schemas.NodeID {
	return s.byName[name]
}

// Outgoing returns the outgoing edges of a node in deterministic order.
// The returned slice is shared; callers must not modify it.
func (s *Store) Outgoing(id schemas.NodeID) []schemas.Edge {
	return s.outgoing[id]
}

// Incoming returns the incoming edges of a node in deterministic order.
// The returned slice is shared; callers must not modify it.
func (s *Store) Incoming(id schemas.NodeID) []schemas.Edge {
	return s.incoming[id]
}

// Files returns every distinct file path in the snapshot, sorted.
func (s *Store) Files() []string {
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// AllNodeIDs returns every node id in the snapshot, sorted by hex encoding.
func (s *Store) AllNodeIDs() []schemas.NodeID {
	ids := make([]schemas.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

// Stats computes the aggregate counts for the snapshot.
func (s *Store) Stats() Stats {
	stats := Stats{
		TotalNodes:   len(s.nodes),
		TotalEdges:   s.edgeCount,
		TotalFiles:   len(s.byFile),
		NodesPerKind: make(map[schemas.NodeKind]int, len(s.byKind)),
	}
	for kind, ids := range s.byKind {
		stats.NodesPerKind[kind] = len(ids)
	}
	return stats
}
