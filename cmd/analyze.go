// File: cmd/analyze.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cartograph-io/cartograph/internal/engine"
)

// newAnalyzeCmd exposes the source metrics calculator.
func newAnalyzeCmd() *cobra.Command {
	opts := engine.DefaultComplexityOptions()
	var file string

	analyzeCmd := &cobra.Command{
		Use:   "analyze <symbol-id-or-name>",
		Short: "Computes complexity metrics for a symbol or a whole file",
		Long: `Computes cyclomatic, cognitive, Halstead, and maintainability metrics.
A positional argument analyzes one symbol; --file alone analyzes every
function and method in that file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}

			var target engine.TargetRef
			if len(args) == 1 {
				target = resolveRef(args[0], file)
			} else {
				target = engine.TargetRef{File: file}
			}

			results, err := eng.AnalyzeComplexity(target, opts)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	analyzeCmd.Flags().StringVar(&file, "file", "", "file to analyze, or to narrow name resolution")
	analyzeCmd.Flags().StringSliceVar(&opts.Metrics, "metrics", nil,
		"metric families to report: lines, cyclomatic, cognitive, halstead, maintainability (default all)")
	analyzeCmd.Flags().BoolVar(&opts.WarnOnThreshold, "warn", opts.WarnOnThreshold, "attach threshold warnings")
	return analyzeCmd
}
