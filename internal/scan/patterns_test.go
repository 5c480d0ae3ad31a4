package scan

import (
	"testing"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func findingsByRule(report schemas.ScanReport) map[string][]schemas.Finding {
	out := map[string][]schemas.Finding{}
	for _, f := range report.Findings {
		out[f.Rule] = append(out[f.Rule], f)
	}
	return out
}

func TestPatternScanner_DesignPatterns(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.node("ConfigSingleton", schemas.NodeKindClass, "src/config.py")
	g.node("get_instance", schemas.NodeKindMethod, "src/config.py")
	g.edge("ConfigSingleton", "get_instance", schemas.EdgeKindCalls)

	g.node("UserFactory", schemas.NodeKindClass, "src/users.py")
	g.node("create_user", schemas.NodeKindMethod, "src/users.py")
	g.edge("UserFactory", "create_user", schemas.EdgeKindCalls)

	g.node("EventListener", schemas.NodeKindClass, "src/events.py")
	g.node("notify_all", schemas.NodeKindMethod, "src/events.py")
	g.edge("EventListener", "notify_all", schemas.EdgeKindCalls)

	g.node("OrderRepository", schemas.NodeKindClass, "src/orders.py")

	scanner := NewPatternScanner(g.query(t), zap.NewNop())
	report := scanner.Scan(Options{ConfidenceThreshold: 0.5})
	rules := findingsByRule(report)

	require.Len(t, rules["singleton"], 1)
	assert.GreaterOrEqual(t, rules["singleton"][0].Confidence, 0.9)

	require.Len(t, rules["factory"], 1)
	assert.Equal(t, "src/users.py", rules["factory"][0].File)

	require.Len(t, rules["observer"], 1)
	require.Len(t, rules["repository"], 1)
	assert.Empty(t, rules["mvc"], "no Model/View classes present")
}

func TestPatternScanner_AntiPatterns(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.nodeAt("Kitchen", schemas.NodeKindClass, "src/kitchen.py", 1, 700)
	g.nodeAt("long_runner", schemas.NodeKindFunction, "src/runner.py", 1, 150)
	g.nodeAt("short_helper", schemas.NodeKindFunction, "src/runner.py", 160, 170)

	scanner := NewPatternScanner(g.query(t), zap.NewNop())
	report := scanner.Scan(Options{})
	rules := findingsByRule(report)

	require.Len(t, rules["god_class"], 1)
	assert.Equal(t, schemas.SeverityMedium, rules["god_class"][0].Severity)

	require.Len(t, rules["long_method"], 1)
	assert.Equal(t, "long_runner", extractName(t, rules["long_method"][0].Description))
}

// extractName pulls the quoted symbol name out of a finding description.
func extractName(t *testing.T, description string) string {
	t.Helper()
	start := -1
	for i, r := range description {
		if r == '"' {
			if start < 0 {
				start = i + 1
			} else {
				return description[start:i]
			}
		}
	}
	t.Fatalf("no quoted name in %q", description)
	return ""
}

func TestPatternScanner_MVC(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.node("UserController", schemas.NodeKindClass, "src/controllers.py")
	g.node("UserModel", schemas.NodeKindClass, "src/models.py")
	g.node("UserView", schemas.NodeKindClass, "src/views.py")

	report := NewPatternScanner(g.query(t), zap.NewNop()).Scan(Options{Types: []string{"mvc"}})
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "mvc", report.Findings[0].Rule)
	assert.ElementsMatch(t, []string{"UserController", "UserModel", "UserView"}, report.Findings[0].Indicators)
}

func TestPatternScanner_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	g := newFixture()
	// Name alone gives factory confidence 0.6; no creator methods.
	g.node("WidgetFactory", schemas.NodeKindClass, "src/widgets.py")

	scanner := NewPatternScanner(g.query(t), zap.NewNop())

	low := scanner.Scan(Options{Types: []string{"factory"}, ConfidenceThreshold: 0.5})
	assert.Len(t, low.Findings, 1)

	high := scanner.Scan(Options{Types: []string{"factory"}, ConfidenceThreshold: 0.7})
	assert.Empty(t, high.Findings, "confidence below the caller's threshold is dropped")
}

func TestPatternScanner_SummaryCountsCandidateFiles(t *testing.T) {
	t.Parallel()

	g := newFixture()
	// Neither node trips a detector; both files were still examined.
	g.node("PlainCatalog", schemas.NodeKindClass, "src/catalog.py")
	g.node("tick", schemas.NodeKindFunction, "src/clock.py")

	report := NewPatternScanner(g.query(t), zap.NewNop()).Scan(Options{})
	assert.Empty(t, report.Findings)
	assert.Equal(t, 2, report.Summary.FilesScanned)
}

func TestUnusedScanner(t *testing.T) {
	t.Parallel()

	g := newFixture()
	g.node("orphan_helper", schemas.NodeKindFunction, "src/util.py")
	g.node("used_helper", schemas.NodeKindFunction, "src/util.py")
	g.node("caller", schemas.NodeKindFunction, "src/app.py")
	g.node("main", schemas.NodeKindFunction, "src/app.py")
	g.node("stale_import", schemas.NodeKindImport, "src/app.py")
	g.edge("caller", "used_helper", schemas.EdgeKindCalls)

	scanner := NewUnusedScanner(g.query(t), zap.NewNop())

	t.Run("zero-reference symbols are reported", func(t *testing.T) {
		report := scanner.Scan(Options{ConfidenceThreshold: 0.7})
		rules := findingsByRule(report)

		require.Len(t, rules["unused_function"], 2, "orphan_helper and caller have no callers")
		require.Len(t, rules["unused_import"], 1)
		for _, f := range report.Findings {
			assert.Contains(t, f.Indicators, "zero incoming references")
		}
	})

	t.Run("entry points are discounted below threshold", func(t *testing.T) {
		report := scanner.Scan(Options{ConfidenceThreshold: 0.7})
		for _, f := range report.Findings {
			assert.NotContains(t, f.Description, `"main"`)
		}
	})

	t.Run("referenced symbols are not reported", func(t *testing.T) {
		report := scanner.Scan(Options{ConfidenceThreshold: 0.0})
		for _, f := range report.Findings {
			assert.NotContains(t, f.Description, `"used_helper"`)
		}
	})

	t.Run("type filter", func(t *testing.T) {
		report := scanner.Scan(Options{Types: []string{"unused_import"}, ConfidenceThreshold: 0.5})
		require.Len(t, report.Findings, 1)
		assert.Equal(t, "unused_import", report.Findings[0].Rule)
	})
}
