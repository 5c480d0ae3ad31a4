package scan

import (
	"errors"
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// graphFixture assembles snapshots for scanner tests, keyed by symbol name.
type graphFixture struct {
	nodes []schemas.Node
	edges []schemas.Edge
	ids   map[string]schemas.NodeID
	line  int
}

func newFixture() *graphFixture {
	return &graphFixture{ids: make(map[string]schemas.NodeID)}
}

func (g *graphFixture) node(name string, kind schemas.NodeKind, file string) schemas.NodeID {
	return g.nodeSpan(name, kind, file, 6)
}

func (g *graphFixture) nodeSpan(name string, kind schemas.NodeKind, file string, lines int) schemas.NodeID {
	g.line += lines + 2
	span := schemas.Span{StartLine: g.line, StartColumn: 1, EndLine: g.line + lines - 1, EndColumn: 1}
	node := schemas.Node{
		ID:       schemas.NewNodeID("scan-repo", file, span, kind),
		Kind:     kind,
		Name:     name,
		Language: "python",
		File:     file,
		Span:     span,
	}
	g.nodes = append(g.nodes, node)
	g.ids[name] = node.ID
	return node.ID
}

// nodeAt pins a node to an explicit span, for text-dependent scanners.
func (g *graphFixture) nodeAt(name string, kind schemas.NodeKind, file string, startLine, endLine int) schemas.NodeID {
	span := schemas.Span{StartLine: startLine, StartColumn: 1, EndLine: endLine, EndColumn: 1}
	node := schemas.Node{
		ID:       schemas.NewNodeID("scan-repo", file, span, kind),
		Kind:     kind,
		Name:     name,
		Language: "python",
		File:     file,
		Span:     span,
	}
	g.nodes = append(g.nodes, node)
	g.ids[name] = node.ID
	return node.ID
}

func (g *graphFixture) edge(source, target string, kind schemas.EdgeKind) {
	g.edges = append(g.edges, schemas.Edge{
		Source: g.ids[source],
		Target: g.ids[target],
		Kind:   kind,
	})
}

func (g *graphFixture) query(t *testing.T) *graph.Query {
	t.Helper()
	snap := schemas.Snapshot{RepoID: "scan-repo", Nodes: g.nodes, Edges: g.edges}
	return graph.NewQuery(graph.NewStore(snap, zap.NewNop()), zap.NewNop())
}

// memFileReader serves file contents from a map; missing entries fail like
// an unreadable file.
type memFileReader map[string]string

func (m memFileReader) ReadText(path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", errors.New("unreadable: " + path)
	}
	return text, nil
}
