package scan

import (
	"fmt"
	"math"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
)

// securityRule is one vocabulary-driven advisory check. The vocabulary
// matches against node names; these are name heuristics, not taint analysis.
type securityRule struct {
	name           string
	vocabulary     []string
	severity       schemas.Severity
	confidence     float64
	owasp          string
	cvssBase       float64
	description    string
	recommendation string
}

var securityRules = []securityRule{
	{
		name:           "injection",
		vocabulary:     []string{"eval", "exec", "system", "popen", "subprocess", "shell", "raw_sql", "rawquery"},
		severity:       schemas.SeverityCritical,
		confidence:     0.75,
		owasp:          "A03:2021-Injection",
		cvssBase:       9.0,
		description:    "symbol name suggests dynamic code or command execution",
		recommendation: "Avoid dynamic execution of untrusted input; use parameterized APIs and allow-lists.",
	},
	{
		name:           "sql_injection",
		vocabulary:     []string{"execute_query", "query_string", "sql_concat", "format_sql", "build_query"},
		severity:       schemas.SeverityHigh,
		confidence:     0.65,
		owasp:          "A03:2021-Injection",
		cvssBase:       8.5,
		description:    "symbol name suggests string-built SQL",
		recommendation: "Use parameterized statements or a query builder instead of string concatenation.",
	},
	{
		name:           "authentication",
		vocabulary:     []string{"password", "passwd", "secret", "api_key", "apikey", "private_key", "credentials"},
		severity:       schemas.SeverityHigh,
		confidence:     0.6,
		owasp:          "A07:2021-Identification and Authentication Failures",
		cvssBase:       7.5,
		description:    "symbol name suggests credential material handled in code",
		recommendation: "Keep secrets in a dedicated secret store; never hardcode or log them.",
	},
	{
		name:           "crypto",
		vocabulary:     []string{"md5", "sha1", "des_", "_des", "rc4", "ecb"},
		severity:       schemas.SeverityMedium,
		confidence:     0.7,
		owasp:          "A02:2021-Cryptographic Failures",
		cvssBase:       5.9,
		description:    "symbol name references a weak or broken cryptographic primitive",
		recommendation: "Use a modern algorithm (SHA-256 or better, AES-GCM) from a maintained library.",
	},
	{
		name:           "data_exposure",
		vocabulary:     []string{"dump_", "debug_print", "log_password", "print_token", "expose"},
		severity:       schemas.SeverityMedium,
		confidence:     0.5,
		owasp:          "A09:2021-Security Logging and Monitoring Failures",
		cvssBase:       5.3,
		description:    "symbol name suggests sensitive data may be written to logs or output",
		recommendation: "Redact sensitive values before logging; review what the symbol emits.",
	},
	{
		name:           "unsafe_patterns",
		vocabulary:     []string{"pickle", "deserialize", "unserialize", "yaml_load", "marshal_load"},
		severity:       schemas.SeverityHigh,
		confidence:     0.65,
		owasp:          "A08:2021-Software and Data Integrity Failures",
		cvssBase:       8.1,
		description:    "symbol name suggests deserialization of untrusted data",
		recommendation: "Deserialize only trusted input, or switch to a safe, schema-validated format.",
	},
}

// SecurityScanner produces name-vocabulary security advisories over the
// snapshot's functions, methods, calls, and variables.
type SecurityScanner struct {
	query *graph.Query
	log   *zap.Logger
}

// NewSecurityScanner builds the scanner.
func NewSecurityScanner(query *graph.Query, logger *zap.Logger) *SecurityScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityScanner{query: query, log: logger.Named("SecurityScan")}
}

// Scan runs every rule passing the type filter and returns the findings that
// clear the thresholds, plus an aggregate 0-100 security score.
func (s *SecurityScanner) Scan(opts Options) schemas.ScanReport {
	start := time.Now()
	store := s.query.Store()

	candidateKinds := []schemas.NodeKind{
		schemas.NodeKindFunction,
		schemas.NodeKindMethod,
		schemas.NodeKindCall,
		schemas.NodeKindVariable,
	}

	files := map[string]bool{}
	findings := []schemas.Finding{}
	for _, kind := range candidateKinds {
		for _, id := range store.NodesByKind(kind) {
			node, _ := store.GetNode(id)
			if !opts.inScope(node.File) {
				continue
			}
			files[node.File] = true
			for _, rule := range securityRules {
				if !opts.wantsType(rule.name) {
					continue
				}
				matched := containsAny(node.Name, rule.vocabulary)
				if len(matched) == 0 {
					continue
				}
				f := newFinding("security", rule.name, node, rule.severity, rule.confidence,
					fmt.Sprintf("%s: %q", rule.description, node.Name))
				f.Indicators = matched
				f.Recommendation = rule.recommendation
				f.OWASP = rule.owasp
				f.CVSSScore = adjustCVSS(rule.cvssBase, node.File)
				if opts.meetsThreshold(f) {
					findings = append(findings, f)
				}
			}
		}
	}

	score := securityScore(findings)
	report := schemas.ScanReport{
		Findings:      findings,
		Summary:       schemas.Summarize(findings, len(files), 0, time.Since(start)),
		SecurityScore: &score,
	}
	s.log.Debug("Security scan finished",
		zap.Int("findings", len(findings)),
		zap.Float64("score", score))
	return report
}

// adjustCVSS applies the file-context multiplier: findings in test code are
// discounted, findings in main/production paths are amplified. The result
// stays within the CVSS 0-10 range.
func adjustCVSS(base float64, file string) float64 {
	score := base
	switch {
	case isTestFile(file):
		score *= 0.7
	case isProductionEntryFile(file):
		score *= 1.1
	}
	return math.Min(10, math.Max(0, math.Round(score*10)/10))
}

// securityScore deducts per-finding weights from 100, floored at 0.
func securityScore(findings []schemas.Finding) float64 {
	score := 100.0
	for _, f := range findings {
		switch f.Severity {
		case schemas.SeverityCritical:
			score -= 25
		case schemas.SeverityHigh:
			score -= 15
		case schemas.SeverityMedium:
			score -= 8
		case schemas.SeverityLow:
			score -= 3
		}
	}
	return math.Max(0, score)
}
