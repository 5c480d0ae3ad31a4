// File: cmd/query.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cartograph-io/cartograph/internal/engine"
)

// newQueryCmd groups the structural graph queries.
func newQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Structural queries over the graph snapshot",
	}
	queryCmd.AddCommand(
		newDependenciesCmd(),
		newReferencesCmd(),
		newPathCmd(),
		newSearchCmd(),
		newInheritanceCmd(),
		newTransitiveCmd(),
		newCyclesCmd(),
		newFlowCmd(),
		newStatsCmd(),
	)
	return queryCmd
}

func newDependenciesCmd() *cobra.Command {
	var (
		file    string
		depType string
	)
	cmd := &cobra.Command{
		Use:   "dependencies [node-id-or-name]",
		Short: "Lists the direct dependencies of a symbol or a whole file",
		Args:  cobra.MaximumNArgs(1),
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
			deps, err := eng.FindDependencies(target, depType)
			if err != nil {
				return err
			}
			return printJSON(deps)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file to aggregate over, or to narrow name resolution")
	cmd.Flags().StringVar(&depType, "type", "direct", "dependency type: direct, calls, imports, reads, writes")
	return cmd
}

func newReferencesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "references <node-id-or-name>",
		Short: "Lists every reference to a symbol with its site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			refs, err := eng.FindReferences(resolveRef(args[0], file))
			if err != nil {
				return err
			}
			return printJSON(refs)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "narrow name resolution to this file")
	return cmd
}

func newPathCmd() *cobra.Command {
	opts := engine.DefaultPathOptions()
	cmd := &cobra.Command{
		Use:   "path <source> <target>",
		Short: "Finds the shortest dependency path between two symbols",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			result, err := eng.FindPath(resolveRef(args[0], ""), resolveRef(args[1], ""), opts)
			if err != nil {
				return err
			}
			if result == nil {
				return printJSON(map[string]any{"reachable": false})
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", opts.MaxDepth, "maximum edges a path may cross")
	return cmd
}

func newSearchCmd() *cobra.Command {
	opts := engine.DefaultSearchOptions()
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Searches symbols by name pattern (regex, substring fallback)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			hits, err := eng.SearchSymbols(args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(hits)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Kinds, "kinds", nil, "restrict to these node kinds")
	cmd.Flags().StringVar(&opts.InheritsFrom, "inherits-from", "", "keep only classes extending this base")
	cmd.Flags().StringVar(&opts.InFile, "in-file", "", "keep only symbols declared in this file")
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "maximum results")
	return cmd
}

func newInheritanceCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "inheritance <class-id-or-name>",
		Short: "Shows a class's bases, subclasses, mixins, and resolution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			info, err := eng.GetInheritanceInfo(resolveRef(args[0], file))
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "narrow name resolution to this file")
	return cmd
}

func newTransitiveCmd() *cobra.Command {
	opts := engine.DefaultTransitiveOptions()
	cmd := &cobra.Command{
		Use:   "transitive <seed-id-or-name>",
		Short: "Expands the bounded transitive dependency closure of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			result, err := eng.TransitiveDependencies(resolveRef(args[0], ""), opts)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", opts.MaxDepth, "maximum edges crossed from the seed")
	cmd.Flags().StringSliceVar(&opts.EdgeKinds, "edge-kinds", nil, "restrict to these edge kinds")
	cmd.Flags().BoolVar(&opts.DetectCycles, "detect-cycles", opts.DetectCycles, "also run cycle detection from the seed")
	return cmd
}

func newCyclesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles <seed-id-or-name>",
		Short: "Detects dependency cycles reachable from a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			cycles, err := eng.DetectCycles(resolveRef(args[0], ""))
			if err != nil {
				return err
			}
			return printJSON(cycles)
		},
	}
	return cmd
}

func newFlowCmd() *cobra.Command {
	opts := engine.DefaultTraceOptions()
	var file string
	cmd := &cobra.Command{
		Use:   "flow <symbol-id-or-name>",
		Short: "Traces data flow through reads, writes, and calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			result, err := eng.TraceDataFlow(resolveRef(args[0], file), opts)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "narrow name resolution to this file")
	cmd.Flags().StringVar(&opts.Direction, "direction", opts.Direction, "forward, backward, or both")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", opts.MaxDepth, "maximum flow edges followed")
	cmd.Flags().BoolVar(&opts.FollowCalls, "follow-calls", opts.FollowCalls, "include call edges as flow conduits")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints aggregate snapshot statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine()
			if err != nil {
				return err
			}
			return printJSON(eng.Stats())
		},
	}
}
