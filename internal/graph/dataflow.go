package graph

import (
	"fmt"

	"github.com/cartograph-io/cartograph/api/schemas"
	"go.uber.org/zap"
)

// Direction selects which way a data-flow trace walks the graph.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

// ParseDirection validates a direction string from the boundary.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionForward, DirectionBackward, DirectionBoth:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unrecognized direction %q", s)
}

// FlowType classifies one data-flow step.
type FlowType string

const (
	FlowRead      FlowType = "read"
	FlowWrite     FlowType = "write"
	FlowCall      FlowType = "function_call"
	FlowParameter FlowType = "function_parameter"
)

// FlowRecord is one step of a data-flow trace. Depth counts edges crossed
// from the seed, so the seed's own edges produce records at depth 1.
type FlowRecord struct {
	FlowType FlowType         `json:"flow_type"`
	Depth    int              `json:"depth"`
	Source   schemas.NodeID   `json:"source"`
	Target   schemas.NodeID   `json:"target"`
	EdgeKind schemas.EdgeKind `json:"edge_kind"`
}

// FlowResult holds the records of a trace. Both directions are traced
// independently when requested; the result sets are never merged.
type FlowResult struct {
	Forward  []FlowRecord `json:"forward,omitempty"`
	Backward []FlowRecord `json:"backward,omitempty"`
}

// DataFlow traces how data reaches or originates from a variable or
// parameter node.
type DataFlow struct {
	query *Query
	log   *zap.Logger
}

// NewDataFlow builds the tracer on top of a query engine.
func NewDataFlow(query *Query, logger *zap.Logger) *DataFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataFlow{query: query, log: logger.Named("DataFlow")}
}

// Trace walks from seed in the given direction. A forward trace follows the
// seed's outgoing Reads edges (data flowing out) and, when followCalls is
// set, outgoing Calls edges into callees. A backward trace follows incoming
// Writes edges (who last wrote the value) and, when followCalls is set,
// incoming Calls edges from callers. A node with no such edges yields an
// empty record list, which is a successful result.
func (d *DataFlow) Trace(seed schemas.NodeID, direction Direction, maxDepth int, followCalls bool) (*FlowResult, bool) {
	if _, ok := d.query.Store().GetNode(seed); !ok {
		return nil, false
	}
	result := &FlowResult{}
	switch direction {
	case DirectionForward:
		result.Forward = d.walk(seed, maxDepth, followCalls, true)
	case DirectionBackward:
		result.Backward = d.walk(seed, maxDepth, followCalls, false)
	case DirectionBoth:
		result.Forward = d.walk(seed, maxDepth, followCalls, true)
		result.Backward = d.walk(seed, maxDepth, followCalls, false)
	}
	return result, true
}

// walk is the shared work-list traversal. Forward walks outgoing edges,
// backward walks incoming edges; in both cases the next frontier node is the
// far endpoint of the edge.
func (d *DataFlow) walk(seed schemas.NodeID, maxDepth int, followCalls bool, forward bool) []FlowRecord {
	store := d.query.Store()

	type item struct {
		id    schemas.NodeID
		depth int
	}
	records := []FlowRecord{}
	visited := map[schemas.NodeID]bool{seed: true}
	queue := []item{{seed, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		var edges []schemas.Edge
		if forward {
			edges = store.Outgoing(cur.id)
		} else {
			edges = store.Incoming(cur.id)
		}

		for _, edge := range edges {
			if !d.flowEdge(edge.Kind, followCalls, forward) {
				continue
			}
			far := edge.Target
			if !forward {
				far = edge.Source
			}
			records = append(records, FlowRecord{
				FlowType: d.classify(edge, far),
				Depth:    cur.depth + 1,
				Source:   edge.Source,
				Target:   edge.Target,
				EdgeKind: edge.Kind,
			})
			if !visited[far] {
				visited[far] = true
				queue = append(queue, item{far, cur.depth + 1})
			}
		}
	}
	return records
}

func (d *DataFlow) flowEdge(kind schemas.EdgeKind, followCalls, forward bool) bool {
	if forward {
		if kind == schemas.EdgeKindReads {
			return true
		}
	} else {
		if kind == schemas.EdgeKindWrites {
			return true
		}
	}
	return followCalls && kind == schemas.EdgeKindCalls
}

// classify maps an edge crossing to its flow type. Steps landing on a
// parameter node are parameter flows regardless of edge kind.
func (d *DataFlow) classify(edge schemas.Edge, far schemas.NodeID) FlowType {
	if node, ok := d.query.Store().GetNode(far); ok && node.Kind == schemas.NodeKindParameter {
		return FlowParameter
	}
	switch edge.Kind {
	case schemas.EdgeKindReads:
		return FlowRead
	case schemas.EdgeKindWrites:
		return FlowWrite
	default:
		return FlowCall
	}
}
