package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/graph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DuplicateScanner compares every file pair in the snapshot by Jaccard
// similarity over their line sets. The sweep is O(files²), so it runs the
// comparisons in a bounded worker pool and honors context cancellation;
// cancellation returns the findings gathered so far along with ctx.Err().
type DuplicateScanner struct {
	query       *graph.Query
	files       FileReader
	parallelism int
	log         *zap.Logger
}

// NewDuplicateScanner builds the scanner. parallelism bounds the concurrent
// pair comparisons; values below 1 are treated as 1.
func NewDuplicateScanner(query *graph.Query, files FileReader, parallelism int, logger *zap.Logger) *DuplicateScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &DuplicateScanner{
		query:       query,
		files:       files,
		parallelism: parallelism,
		log:         logger.Named("DuplicateScan"),
	}
}

// lineSet is a file's trimmed, non-empty, non-comment line set.
type lineSet map[string]struct{}

// buildLineSet normalizes file content for comparison: lines are trimmed,
// and empty or comment-only lines are dropped.
func buildLineSet(text string) lineSet {
	set := make(lineSet)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}

func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "--")
}

// jaccard computes |a∩b| / |a∪b|. Two identical non-empty sets score 1.0;
// disjoint sets score 0.0; two empty sets score 0.0 by convention.
func jaccard(a, b lineSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for line := range a {
		if _, ok := b[line]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Scan loads every in-scope file, then compares all pairs concurrently.
// Unreadable files are skipped (counted in the summary) without failing the
// scan. similarityThreshold is the minimum ratio reported as a finding.
func (d *DuplicateScanner) Scan(ctx context.Context, opts Options, similarityThreshold float64) (schemas.ScanReport, error) {
	start := time.Now()

	var paths []string
	for _, file := range d.query.Store().Files() {
		if opts.inScope(file) {
			paths = append(paths, file)
		}
	}

	sets := make(map[string]lineSet, len(paths))
	skipped := 0
	readable := paths[:0]
	for _, path := range paths {
		text, err := d.files.ReadText(path)
		if err != nil {
			d.log.Debug("Skipping unreadable file", zap.String("file", path), zap.Error(err))
			skipped++
			continue
		}
		sets[path] = buildLineSet(text)
		readable = append(readable, path)
	}

	type pairResult struct {
		a, b       string
		similarity float64
	}

	var mu sync.Mutex
	var results []pairResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)

	for i := 0; i < len(readable); i++ {
		for j := i + 1; j < len(readable); j++ {
			a, b := readable[i], readable[j]
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				similarity := jaccard(sets[a], sets[b])
				if similarity >= similarityThreshold {
					mu.Lock()
					results = append(results, pairResult{a: a, b: b, similarity: similarity})
					mu.Unlock()
				}
				return nil
			})
		}
	}
	err := g.Wait()

	// Deterministic report order regardless of worker scheduling.
	sort.Slice(results, func(i, j int) bool {
		if results[i].a != results[j].a {
			return results[i].a < results[j].a
		}
		return results[i].b < results[j].b
	})

	findings := make([]schemas.Finding, 0, len(results))
	for _, r := range results {
		severity := schemas.SeverityLow
		if r.similarity >= 0.95 {
			severity = schemas.SeverityMedium
		}
		f := newFinding("duplicates", "duplicate_files", nil, severity, r.similarity,
			fmt.Sprintf("files %q and %q share %.0f%% of their lines", r.a, r.b, r.similarity*100))
		f.File = r.a
		f.Indicators = []string{r.a, r.b}
		f.Recommendation = "Extract the shared logic into one place."
		f.Metadata = map[string]any{
			"pair_file":  r.b,
			"similarity": r.similarity,
		}
		if opts.meetsThreshold(f) {
			findings = append(findings, f)
		}
	}

	report := schemas.ScanReport{
		Findings: findings,
		Summary:  schemas.Summarize(findings, len(readable), skipped, time.Since(start)),
	}
	if err != nil {
		d.log.Warn("Duplicate scan interrupted", zap.Error(err))
		return report, err
	}
	return report, nil
}
