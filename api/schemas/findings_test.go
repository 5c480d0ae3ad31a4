package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Ordering(t *testing.T) {
	t.Parallel()

	assert.True(t, SeverityCritical.AtLeast(SeverityLow))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.False(t, SeverityInfo.AtLeast(SeverityLow))
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	sev, err := ParseSeverity("medium")
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, sev)

	_, err = ParseSeverity("HIGH")
	assert.Error(t, err, "severities are lowercase on the wire")

	_, err = ParseSeverity("severe")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	findings := []Finding{
		{Category: "security", Severity: SeverityHigh},
		{Category: "security", Severity: SeverityMedium},
		{Category: "performance", Severity: SeverityMedium},
	}
	summary := Summarize(findings, 12, 1, 30*time.Millisecond)

	assert.Equal(t, 12, summary.FilesScanned)
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 3, summary.TotalFindings)
	assert.Equal(t, 2, summary.BySeverity[SeverityMedium])
	assert.Equal(t, 2, summary.ByCategory["security"])
	assert.Equal(t, 1, summary.ByCategory["performance"])
}
