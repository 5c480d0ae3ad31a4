// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cartograph-io/cartograph/api/schemas"
	"github.com/cartograph-io/cartograph/internal/config"
	"github.com/cartograph-io/cartograph/internal/engine"
	"github.com/cartograph-io/cartograph/internal/observability"
	"github.com/cartograph-io/cartograph/internal/scan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	cfgFile      string
	snapshotPath string
	appConfig    *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "cartograph",
	Short:   "Cartograph answers structural and quality questions about an extracted code graph.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Initialize a fallback logger so the failure is still visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "cartograph"})
			return err
		}
		appConfig = cfg

		observability.InitializeLogger(cfg.Logger())
		observability.GetLogger().Debug("Starting cartograph", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&snapshotPath, "snapshot", "s", "", "path to the extracted graph snapshot (JSON)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initializeConfig reads in the config file and CARTOGRAPH_* env variables.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("CARTOGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}

// loadEngine decodes the snapshot and builds the operation engine. Every
// subcommand that touches the graph goes through here.
func loadEngine() (*engine.Engine, error) {
	if snapshotPath == "" {
		return nil, fmt.Errorf("--snapshot is required")
	}
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", snapshotPath, err)
	}
	var snap schemas.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %q: %w", snapshotPath, err)
	}

	files := scan.OSFileReader{Root: appConfig.Scan().Root}
	eng := engine.New(snap, appConfig, files, observability.GetLogger())
	observability.GetLogger().Debug("Snapshot loaded",
		zap.String("repo", eng.RepoID()),
		zap.Int("nodes", eng.Stats().TotalNodes),
		zap.Int("edges", eng.Stats().TotalEdges))
	return eng, nil
}

// resolveRef interprets a positional target argument: a 32-char hex string is
// a node id, anything else a symbol name (optionally narrowed by --file).
func resolveRef(arg, file string) engine.TargetRef {
	if _, err := schemas.ParseNodeID(arg); err == nil {
		return engine.TargetRef{ID: arg}
	}
	return engine.TargetRef{Name: arg, File: file}
}

// printJSON writes a result to stdout; logs stay on stderr so the output is
// machine-parsable.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result to JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
