// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Scan() ScanConfig

	// Engine Setters
	SetEngineMaxTraversalDepth(int)
	SetEngineSearchLimit(int)

	// Scan Setters
	SetScanRoot(string)
	SetScanSeverityThreshold(string)
	SetScanParallelism(int)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods.
type Config struct {
	logger LoggerConfig
	engine EngineConfig
	scan   ScanConfig
}

// rawConfig mirrors Config with exported fields so viper/mapstructure can
// decode into it; Config keeps its fields private behind Interface.
type rawConfig struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
}

func (r rawConfig) config() *Config {
	return &Config{logger: r.Logger, engine: r.Engine, scan: r.Scan}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig { return c.logger }
func (c *Config) Engine() EngineConfig { return c.engine }
func (c *Config) Scan() ScanConfig     { return c.scan }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEngineMaxTraversalDepth(d int)    { c.engine.MaxTraversalDepth = d }
func (c *Config) SetEngineSearchLimit(n int)          { c.engine.SearchLimit = n }
func (c *Config) SetScanRoot(root string)             { c.scan.Root = root }
func (c *Config) SetScanSeverityThreshold(s string)   { c.scan.SeverityThreshold = s }
func (c *Config) SetScanParallelism(n int)            { c.scan.Parallelism = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineConfig caps the graph traversal and query operations. Per-call
// options may lower these limits but never exceed them.
type EngineConfig struct {
	// MaxTraversalDepth is the hard ceiling on any BFS/DFS depth parameter.
	MaxTraversalDepth int `mapstructure:"max_traversal_depth" yaml:"max_traversal_depth"`
	// SearchLimit caps the number of symbol-search results per call.
	SearchLimit int `mapstructure:"search_limit" yaml:"search_limit"`
}

// ScanConfig tunes the heuristic scanners.
type ScanConfig struct {
	// Root is the directory the scanners resolve relative file paths against.
	Root string `mapstructure:"root" yaml:"root"`
	// SeverityThreshold drops findings below this tier ("low", "medium",
	// "high", "critical").
	SeverityThreshold string `mapstructure:"severity_threshold" yaml:"severity_threshold"`
	// ConfidenceThreshold drops findings whose detector confidence is lower.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	// ExcludePatterns are substrings of file paths the scanners skip
	// (vendored code, build output).
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	// SimilarityThreshold is the minimum Jaccard ratio for a duplicate
	// finding.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	// Parallelism bounds the concurrent file-pair comparisons in the
	// duplicate scan.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.config()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cartograph")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.max_traversal_depth", 50)
	v.SetDefault("engine.search_limit", 50)

	// -- Scan --
	v.SetDefault("scan.root", ".")
	v.SetDefault("scan.severity_threshold", "low")
	v.SetDefault("scan.confidence_threshold", 0.7)
	v.SetDefault("scan.exclude_patterns", []string{"vendor/", "node_modules/", ".git/"})
	v.SetDefault("scan.similarity_threshold", 0.8)
	v.SetDefault("scan.parallelism", 4)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.engine.MaxTraversalDepth <= 0 {
		return fmt.Errorf("engine.max_traversal_depth must be a positive integer")
	}
	if c.engine.SearchLimit <= 0 {
		return fmt.Errorf("engine.search_limit must be a positive integer")
	}
	if c.scan.Parallelism <= 0 {
		return fmt.Errorf("scan.parallelism must be a positive integer")
	}
	if c.scan.ConfidenceThreshold < 0.0 || c.scan.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("scan.confidence_threshold must be between 0.0 and 1.0")
	}
	if c.scan.SimilarityThreshold < 0.0 || c.scan.SimilarityThreshold > 1.0 {
		return fmt.Errorf("scan.similarity_threshold must be between 0.0 and 1.0")
	}
	switch c.scan.SeverityThreshold {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("scan.severity_threshold must be one of low, medium, high, critical")
	}
	return nil
}
