// Package metrics computes approximate complexity and maintainability
// numbers from raw source text. Everything here is a pure function of
// (text, line count): the metrics never touch the graph, and they are
// deliberately heuristic — raw substring counts, not parsed control flow.
package metrics

import (
	"math"
	"strings"
)

// decisionConstructs are the tokens counted as branch points for cyclomatic
// complexity. Counted as raw substring occurrences over the text.
// Overlapping tokens double-count ("elif" also contains "if"); that
// over-count is part of the heuristic, not a defect to fix.
var decisionConstructs = []string{
	"if", "elif", "else if", "while", "for", "foreach",
	"switch", "case", "catch", "except",
	"?", "&&", "||", "and", "or",
}

// cognitiveConstructs are the per-line decision tokens weighted by nesting
// for cognitive complexity.
var cognitiveConstructs = []string{
	"if", "elif", "while", "for", "switch", "case", "catch", "except",
}

// halsteadOperators is the fixed operator set for the Halstead counts.
// Compound operators are counted independently of the single-character ones
// they contain; the resulting over-count is part of the heuristic.
var halsteadOperators = []string{
	"=", "+", "-", "*", "/", "==", "!=", "<", ">", "<=", ">=", "&&", "||",
}

// Cyclomatic approximates McCabe complexity: 1 plus the number of
// decision-construct occurrences in the text. A decision-free body is
// exactly 1.
func Cyclomatic(text string) int {
	complexity := 1
	for _, construct := range decisionConstructs {
		complexity += strings.Count(text, construct)
	}
	return complexity
}

// Cognitive scans line by line with a heuristic nesting counter: block
// openers ({ or a trailing :) deepen it, closers (}) shallow it, and each
// decision construct on a line contributes 1 plus the current nesting.
func Cognitive(text string) int {
	total := 0
	nesting := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		decisions := 0
		for _, construct := range cognitiveConstructs {
			decisions += strings.Count(trimmed, construct)
		}
		total += decisions * (1 + nesting)

		nesting += strings.Count(trimmed, "{")
		if strings.HasSuffix(trimmed, ":") {
			nesting++
		}
		nesting -= strings.Count(trimmed, "}")
		if nesting < 0 {
			nesting = 0
		}
	}
	return total
}

// Halstead holds the classic Halstead counts and derived values for a body
// of text.
type Halstead struct {
	DistinctOperators int     `json:"distinct_operators"` // n1
	DistinctOperands  int     `json:"distinct_operands"`  // n2
	TotalOperators    int     `json:"total_operators"`    // N1
	TotalOperands     int     `json:"total_operands"`     // N2
	Vocabulary        int     `json:"vocabulary"`
	Length            int     `json:"length"`
	Volume            float64 `json:"volume"`
	Difficulty        float64 `json:"difficulty"`
	Effort            float64 `json:"effort"`
}

// CalcHalstead computes Halstead metrics. Operators come from the fixed set
// above; operands are whitespace-delimited tokens containing at least one
// alphanumeric character. All counts are floored at 1 (vocabulary at 2) so
// the derived values stay defined on degenerate input.
func CalcHalstead(text string) Halstead {
	n1, N1 := 0, 0
	for _, op := range halsteadOperators {
		count := strings.Count(text, op)
		if count > 0 {
			n1++
			N1 += count
		}
	}

	operands := map[string]int{}
	N2 := 0
	for _, token := range strings.Fields(text) {
		if !hasAlphanumeric(token) {
			continue
		}
		operands[token]++
		N2++
	}
	n2 := len(operands)

	n1 = max(n1, 1)
	n2 = max(n2, 1)
	N1 = max(N1, 1)
	N2 = max(N2, 1)

	vocabulary := max(n1+n2, 2)
	length := N1 + N2
	volume := float64(length) * math.Log2(float64(vocabulary))
	difficulty := (float64(n1) / 2) * (float64(N2) / float64(n2))

	return Halstead{
		DistinctOperators: n1,
		DistinctOperands:  n2,
		TotalOperators:    N1,
		TotalOperands:     N2,
		Vocabulary:        vocabulary,
		Length:            length,
		Volume:            volume,
		Difficulty:        difficulty,
		Effort:            difficulty * volume,
	}
}

func hasAlphanumeric(token string) bool {
	for _, r := range token {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// Maintainability combines volume, cyclomatic complexity, size, and
// difficulty into a composite index clamped to [0,100].
func Maintainability(volume float64, cyclomatic int, lines int, difficulty float64) float64 {
	mi := 171 -
		8*math.Log(math.Max(volume, 1)) -
		5*float64(cyclomatic) -
		20*math.Log(math.Max(float64(lines), 1)) -
		2*difficulty
	return math.Min(100, math.Max(0, mi))
}

// Warning thresholds.
const (
	cyclomaticWarnAbove      = 10
	cognitiveWarnAbove       = 15
	maintainabilityWarnBelow = 50
)

// Report is the full metric set for one body of text.
type Report struct {
	Lines           int      `json:"lines"`
	Cyclomatic      int      `json:"cyclomatic"`
	Cognitive       int      `json:"cognitive"`
	Halstead        Halstead `json:"halstead"`
	Maintainability float64  `json:"maintainability"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Analyze computes every metric for the given text. lineCount is the span's
// line count as recorded in the graph; when 0 it is derived from the text.
// warn controls whether threshold warnings are attached.
func Analyze(text string, lineCount int, warn bool) Report {
	if lineCount <= 0 {
		lineCount = strings.Count(text, "\n") + 1
	}
	report := Report{
		Lines:      lineCount,
		Cyclomatic: Cyclomatic(text),
		Cognitive:  Cognitive(text),
		Halstead:   CalcHalstead(text),
	}
	report.Maintainability = Maintainability(
		report.Halstead.Volume, report.Cyclomatic, lineCount, report.Halstead.Difficulty)

	if warn {
		if report.Cyclomatic > cyclomaticWarnAbove {
			report.Warnings = append(report.Warnings,
				"cyclomatic complexity exceeds 10; consider splitting branches into helpers")
		}
		if report.Cognitive > cognitiveWarnAbove {
			report.Warnings = append(report.Warnings,
				"cognitive complexity exceeds 15; consider flattening nested control flow")
		}
		if report.Maintainability < maintainabilityWarnBelow {
			report.Warnings = append(report.Warnings,
				"maintainability index below 50; refactoring recommended")
		}
	}
	return report
}
