package schemas

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// -- Canonical Symbol Graph Data Model --

// NodeIDLen is the size of a NodeID in bytes. The hex boundary encoding is
// therefore always exactly 2*NodeIDLen characters.
const NodeIDLen = 16

// NodeID is the stable, content-derived identifier for a symbol. It is
// computed from the symbol's repository, file, span, and kind, so it does not
// change unless the underlying source changes. At the engine boundary a
// NodeID travels as its fixed-width hex encoding.
type NodeID [NodeIDLen]byte

// NewNodeID derives a NodeID from a symbol's identity components.
// The derivation is deterministic: the same inputs always produce the same ID.
func NewNodeID(repoID, filePath string, span Span, kind NodeKind) NodeID {
	h := sha256.New()
	h.Write([]byte(repoID))
	h.Write([]byte{0})
	h.Write([]byte(filePath))
	h.Write([]byte{0})

	var buf [8]byte
	for _, v := range []int{span.StartLine, span.StartColumn, span.EndLine, span.EndColumn} {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	h.Write([]byte(kind.String()))

	var id NodeID
	copy(id[:], h.Sum(nil)[:NodeIDLen])
	return id
}

// Hex returns the canonical fixed-width hex encoding of the ID.
func (id NodeID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for log output.
func (id NodeID) Short() string {
	return id.Hex()[:8]
}

// String implements fmt.Stringer using the short form.
func (id NodeID) String() string {
	return id.Short()
}

// ParseNodeID decodes a NodeID from its hex boundary encoding.
// The round trip ParseNodeID(id.Hex()) == id holds for every valid ID.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	if len(raw) != NodeIDLen {
		return id, fmt.Errorf("invalid node id %q: expected %d bytes, got %d", s, NodeIDLen, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so NodeIDs serialize as hex
// strings in JSON rather than as byte arrays.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NodeKind classifies a node in the symbol graph. The set is closed: wire
// strings are defined by the explicit tables below, never by reflection, so
// the boundary format is stable regardless of internal naming.
type NodeKind int

const (
	NodeKindUnknown NodeKind = iota
	NodeKindModule
	NodeKindClass
	NodeKindFunction
	NodeKindMethod
	NodeKindParameter
	NodeKindVariable
	NodeKindCall
	NodeKindImport
	NodeKindLiteral
	NodeKindRoute
	NodeKindSQLQuery
	NodeKindEvent
)

var nodeKindNames = map[NodeKind]string{
	NodeKindUnknown:   "unknown",
	NodeKindModule:    "module",
	NodeKindClass:     "class",
	NodeKindFunction:  "function",
	NodeKindMethod:    "method",
	NodeKindParameter: "parameter",
	NodeKindVariable:  "variable",
	NodeKindCall:      "call",
	NodeKindImport:    "import",
	NodeKindLiteral:   "literal",
	NodeKindRoute:     "route",
	NodeKindSQLQuery:  "sql_query",
	NodeKindEvent:     "event",
}

var nodeKindValues = invert(nodeKindNames)

// String returns the canonical wire string for the kind.
func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return nodeKindNames[NodeKindUnknown]
}

// ParseNodeKind resolves a wire string to its NodeKind. Unrecognized strings
// are an error, not a silent fallback to unknown.
func ParseNodeKind(s string) (NodeKind, error) {
	if k, ok := nodeKindValues[s]; ok {
		return k, nil
	}
	return NodeKindUnknown, fmt.Errorf("unrecognized node kind %q", s)
}

// MarshalText serializes the kind as its wire string.
func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses the kind from its wire string.
func (k *NodeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EdgeKind classifies a directed relationship between two nodes. Direction is
// semantic: the source performs the action denoted by the kind on the target
// (A -Calls-> B means A calls B).
type EdgeKind int

const (
	EdgeKindCalls EdgeKind = iota
	EdgeKindReads
	EdgeKindWrites
	EdgeKindImports
	EdgeKindEmits
	EdgeKindRoutesTo
	EdgeKindRaises
	EdgeKindExtends
	EdgeKindImplements
)

var edgeKindNames = map[EdgeKind]string{
	EdgeKindCalls:      "CALLS",
	EdgeKindReads:      "READS",
	EdgeKindWrites:     "WRITES",
	EdgeKindImports:    "IMPORTS",
	EdgeKindEmits:      "EMITS",
	EdgeKindRoutesTo:   "ROUTES_TO",
	EdgeKindRaises:     "RAISES",
	EdgeKindExtends:    "EXTENDS",
	EdgeKindImplements: "IMPLEMENTS",
}

var edgeKindValues = invert(edgeKindNames)

// String returns the canonical wire string for the kind.
func (k EdgeKind) String() string {
	if s, ok := edgeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EDGE_KIND(%d)", int(k))
}

// ParseEdgeKind resolves a wire string to its EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	if k, ok := edgeKindValues[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unrecognized edge kind %q", s)
}

// MarshalText serializes the kind as its wire string.
func (k EdgeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses the kind from its wire string.
func (k *EdgeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DependencyType is a query-time filter over the edge kinds followed by
// dependency lookups. Direct selects all outgoing edges.
type DependencyType string

const (
	DependencyDirect  DependencyType = "direct"
	DependencyCalls   DependencyType = "calls"
	DependencyImports DependencyType = "imports"
	DependencyReads   DependencyType = "reads"
	DependencyWrites  DependencyType = "writes"
)

// ParseDependencyType validates a dependency-type string from the boundary.
func ParseDependencyType(s string) (DependencyType, error) {
	switch DependencyType(s) {
	case DependencyDirect, DependencyCalls, DependencyImports, DependencyReads, DependencyWrites:
		return DependencyType(s), nil
	}
	return "", fmt.Errorf("unrecognized dependency type %q", s)
}

// Matches reports whether an edge of the given kind passes this filter.
func (d DependencyType) Matches(kind EdgeKind) bool {
	switch d {
	case DependencyDirect:
		return true
	case DependencyCalls:
		return kind == EdgeKindCalls
	case DependencyImports:
		return kind == EdgeKindImports
	case DependencyReads:
		return kind == EdgeKindReads
	case DependencyWrites:
		return kind == EdgeKindWrites
	}
	return false
}

// Span is an inclusive source location. Lines and columns are 1-based,
// EndLine >= StartLine holds for well-formed input, and a one-line symbol has
// EndLine == StartLine.
type Span struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
}

// Lines returns the number of source lines the span covers, inclusive.
func (s Span) Lines() int {
	if s.EndLine < s.StartLine {
		return 0
	}
	return s.EndLine - s.StartLine + 1
}

// String renders the span as start_line:start_col-end_line:end_col.
func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// Node is a single symbol in the graph: a function, class, variable, call
// site, and so on, anchored to a file span.
type Node struct {
	ID        NodeID   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Name      string   `json:"name"`
	Language  string   `json:"language"`
	File      string   `json:"file"`
	Span      Span     `json:"span"`
	Signature string   `json:"signature,omitempty"`
	// Metadata carries extractor-specific flags (e.g. "is_metaclass").
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MetaBool reads a boolean metadata flag, returning false when absent or of
// the wrong type.
func (n *Node) MetaBool(key string) bool {
	if n.Metadata == nil {
		return false
	}
	v, ok := n.Metadata[key].(bool)
	return ok && v
}

// Edge is a directed, typed relationship between two nodes in the same
// snapshot.
type Edge struct {
	Source NodeID   `json:"source"`
	Target NodeID   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Key returns a unique string identity for the edge, used for deduplication.
func (e Edge) Key() string {
	return e.Source.Hex() + ">" + e.Target.Hex() + ":" + e.Kind.String()
}

// Snapshot is the finished {nodes, edges} bundle handed over by the external
// indexing pipeline. The engine never mutates it; a re-index replaces the
// whole snapshot.
type Snapshot struct {
	RepoID string `json:"repo_id"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

func invert[K comparable, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
