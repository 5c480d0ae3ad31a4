package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestJaccard(t *testing.T) {
	t.Parallel()

	shared := buildLineSet("x = 1\ny = 2\nreturn x + y\n")

	assert.Equal(t, 1.0, jaccard(shared, buildLineSet("x = 1\ny = 2\nreturn x + y")),
		"identical non-empty line sets")
	assert.Equal(t, 0.0, jaccard(shared, buildLineSet("a = 3\nb = 4")), "disjoint line sets")
	assert.Equal(t, 0.0, jaccard(lineSet{}, lineSet{}), "two empty sets")
}

func TestBuildLineSet(t *testing.T) {
	t.Parallel()

	set := buildLineSet("  x = 1  \n\n# comment\n// also comment\nx = 1\n")
	assert.Len(t, set, 1, "blank lines, comments, and duplicates collapse")
	assert.Contains(t, set, "x = 1")
}

func duplicateFixture(t *testing.T, contents map[string]string) *DuplicateScanner {
	t.Helper()
	g := newFixture()
	for file := range contents {
		g.node("sym_"+file, schemas.NodeKindFunction, file)
	}
	return NewDuplicateScanner(g.query(t), memFileReader(contents), 4, zap.NewNop())
}

func TestDuplicateScanner(t *testing.T) {
	t.Parallel()

	body := "def handle(req):\n    check(req)\n    return respond(req)\n"
	scanner := duplicateFixture(t, map[string]string{
		"src/a.py": body,
		"src/b.py": body,
		"src/c.py": "class Unrelated:\n    pass\n",
	})

	report, err := scanner.Scan(context.Background(), Options{}, 0.8)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)

	f := report.Findings[0]
	assert.Equal(t, "duplicate_files", f.Rule)
	assert.Equal(t, schemas.SeverityMedium, f.Severity, "near-identical pairs escalate")
	assert.Equal(t, 1.0, f.Confidence)
	assert.Equal(t, 1.0, f.Metadata["similarity"])
	assert.ElementsMatch(t, []string{"src/a.py", "src/b.py"}, f.Indicators)
	assert.Equal(t, 3, report.Summary.FilesScanned)
}

func TestDuplicateScanner_UnreadableFileAmongTen(t *testing.T) {
	t.Parallel()

	contents := map[string]string{}
	for i := 0; i < 9; i++ {
		contents[fmt.Sprintf("src/f%d.py", i)] = fmt.Sprintf("value_%d = %d\n", i, i)
	}
	g := newFixture()
	for file := range contents {
		g.node("sym_"+file, schemas.NodeKindFunction, file)
	}
	g.node("sym_broken", schemas.NodeKindFunction, "src/broken.py")
	scanner := NewDuplicateScanner(g.query(t), memFileReader(contents), 4, zap.NewNop())

	report, err := scanner.Scan(context.Background(), Options{}, 0.5)
	require.NoError(t, err, "one unreadable file must not fail the scan")
	assert.Equal(t, 9, report.Summary.FilesScanned)
	assert.Equal(t, 1, report.Summary.FilesSkipped)
	assert.Empty(t, report.Findings, "all nine readable files are distinct")
}

func TestDuplicateScanner_Cancellation(t *testing.T) {
	t.Parallel()

	contents := map[string]string{}
	for i := 0; i < 20; i++ {
		contents[fmt.Sprintf("src/g%d.py", i)] = fmt.Sprintf("item_%d = %d\n", i, i)
	}
	scanner := duplicateFixture(t, contents)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := scanner.Scan(ctx, Options{}, 0.5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 20, report.Summary.FilesScanned, "the partial report is still returned")
}

func TestDuplicateScanner_NoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	body := "total = 0\nfor v in values:\n    total += v\n"
	scanner := duplicateFixture(t, map[string]string{
		"src/x.py": body,
		"src/y.py": body,
	})
	_, err := scanner.Scan(context.Background(), Options{}, 0.8)
	require.NoError(t, err)
}
