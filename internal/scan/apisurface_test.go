package scan

import (
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const apiSource = `def bare_call():
    return 2


def documented():
    """Reads things."""
    return 1




# @deprecated use new_fetch
def old_fetch():
    return 3


def _hidden():
    return 4
`

func apiSurfaceFixture(t *testing.T) *APISurfaceScanner {
	t.Helper()
	g := newFixture()
	g.nodeAt("bare_call", schemas.NodeKindFunction, "src/api.py", 1, 2)
	g.nodeAt("documented", schemas.NodeKindFunction, "src/api.py", 5, 7)
	g.nodeAt("old_fetch", schemas.NodeKindFunction, "src/api.py", 13, 14)
	g.nodeAt("_hidden", schemas.NodeKindFunction, "src/api.py", 17, 18)
	files := memFileReader{"src/api.py": apiSource}
	return NewAPISurfaceScanner(g.query(t), files, zap.NewNop())
}

func TestAPISurfaceScanner_Deprecated(t *testing.T) {
	t.Parallel()

	scanner := apiSurfaceFixture(t)
	report := scanner.Scan(Options{Types: []string{"deprecated"}})
	require.Len(t, report.Findings, 1)

	f := report.Findings[0]
	assert.Equal(t, "deprecated", f.Rule)
	assert.Equal(t, schemas.SeverityMedium, f.Severity)
	assert.Contains(t, f.Description, "old_fetch")
}

func TestAPISurfaceScanner_DeprecatedMetadataFlag(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.node("legacy_sync", schemas.NodeKindFunction, "src/flagged.py")
	g.nodes[len(g.nodes)-1].Metadata = map[string]any{"deprecated": true}
	scanner := NewAPISurfaceScanner(g.query(t), memFileReader{}, zap.NewNop())

	report := scanner.Scan(Options{Types: []string{"deprecated"}})
	require.Len(t, report.Findings, 1, "the metadata flag needs no source text")
	assert.Contains(t, report.Findings[0].Indicators, "extractor metadata flag")
}

func TestAPISurfaceScanner_MissingDocumentation(t *testing.T) {
	t.Parallel()

	scanner := apiSurfaceFixture(t)
	report := scanner.Scan(Options{Types: []string{"missing_documentation"}})
	require.Len(t, report.Findings, 1, "documented, deprecated-commented, and private symbols are exempt")

	f := report.Findings[0]
	assert.Equal(t, schemas.SeverityInfo, f.Severity)
	assert.Contains(t, f.Description, "bare_call")
	assert.Equal(t, 3, f.Metadata["public_elements"], "_hidden is not public")
}

func TestAPISurfaceScanner_UnreadableFile(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.nodeAt("ghost", schemas.NodeKindFunction, "src/missing.py", 1, 5)
	scanner := NewAPISurfaceScanner(g.query(t), memFileReader{}, zap.NewNop())

	report := scanner.Scan(Options{Types: []string{"missing_documentation"}})
	assert.Empty(t, report.Findings)
	assert.Equal(t, 1, report.Summary.FilesSkipped)
}
