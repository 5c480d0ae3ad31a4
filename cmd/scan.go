// File: cmd/scan.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/engine"
)

// newScanCmd groups the heuristic signal scanners. Every scanner shares the
// same request shape; duplicates additionally takes a similarity threshold
// and honors Ctrl+C via the signal-aware context.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Heuristic quality scans over the graph snapshot",
	}

	req := engine.DefaultScanRequest()
	scanCmd.PersistentFlags().StringVar(&req.ScopeFile, "scope", "", "restrict the scan to one file")
	scanCmd.PersistentFlags().StringSliceVar(&req.Types, "types", nil, "restrict which detector rules run")
	scanCmd.PersistentFlags().Float64Var(&req.ConfidenceThreshold, "min-confidence", req.ConfidenceThreshold,
		"minimum finding confidence (negative uses the configured default)")
	scanCmd.PersistentFlags().StringVar(&req.MinSeverity, "min-severity", "",
		"minimum finding severity (empty uses the configured default)")

	runScan := func(run func(*engine.Engine, engine.ScanRequest) (schemas.ScanReport, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			report, err := run(eng, req)
			if err != nil {
				return err
			}
			return printJSON(report)
		}
	}

	scanCmd.AddCommand(&cobra.Command{
		Use:   "patterns",
		Short: "Detects design patterns and anti-patterns",
		RunE:  runScan((*engine.Engine).DetectPatterns),
	})
	scanCmd.AddCommand(&cobra.Command{
		Use:   "unused",
		Short: "Finds symbols with zero incoming references",
		RunE:  runScan((*engine.Engine).FindUnusedCode),
	})
	scanCmd.AddCommand(&cobra.Command{
		Use:   "security",
		Short: "Flags security-relevant naming and usage patterns",
		RunE:  runScan((*engine.Engine).AnalyzeSecurity),
	})
	scanCmd.AddCommand(&cobra.Command{
		Use:   "performance",
		Short: "Flags nested loops, I/O in loops, and hot spots",
		RunE:  runScan((*engine.Engine).AnalyzePerformance),
	})
	scanCmd.AddCommand(&cobra.Command{
		Use:   "api-surface",
		Short: "Inventories the public API, deprecations, and missing docs",
		RunE:  runScan((*engine.Engine).AnalyzeAPISurface),
	})

	similarity := -1.0
	duplicatesCmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Pairwise duplicate-file detection by line-set similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			report, err := eng.DetectDuplicates(cmd.Context(), req, similarity)
			if err != nil {
				// A cancelled sweep still printed what it found.
				if printErr := printJSON(report); printErr != nil {
					return printErr
				}
				return err
			}
			return printJSON(report)
		},
	}
	duplicatesCmd.Flags().Float64Var(&similarity, "similarity", similarity,
		"minimum Jaccard similarity to report (negative uses the configured default)")
	scanCmd.AddCommand(duplicatesCmd)

	return scanCmd
}
