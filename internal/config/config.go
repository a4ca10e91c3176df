package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/akload/internal/window"
)

// Unmapped kernel policies.
const (
	UnmappedProcess = "process"
	UnmappedSkip    = "skip"
)

// DefaultSource tags audit entries when no source is configured.
const DefaultSource = "akrr"

// Config holds all runtime configuration for an akload run.
type Config struct {
	DSN         string
	ExplorerDSN string
	LogFormat   string // "text" or "json"
	Verbose     bool
	Debug       bool
	Quiet       bool
	ConfigFile  string

	// Window
	Start      string
	End        string
	SinceLast  string
	OffsetDays int

	// Scope
	Source   string
	Resource string // nickname
	Kernel   string // basename substring

	DryRun              bool
	Replace             bool
	Remove              bool
	CalculateControls   bool
	RecalculateControls bool
	Unmapped            string
	Workers             int

	OutcomesFile string
	MetricsFile  string
	HistoryLimit int
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Source      string `yaml:"source"`
	Unmapped    string `yaml:"unmapped"`
	Workers     int    `yaml:"workers"`
	Resource    string `yaml:"resource"`
	Kernel      string `yaml:"kernel"`
	ExplorerDSN string `yaml:"explorer_dsn"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// A value is taken from the file only when changed reports that the matching
// flag was not set on the command line; changed may be nil.
func (c *Config) LoadFromFile(path string, changed func(flag string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if yc.Source != "" && !changed("source") {
		c.Source = yc.Source
	}
	if yc.Unmapped != "" && !changed("unmapped") {
		c.Unmapped = yc.Unmapped
	}
	if yc.Workers != 0 && !changed("workers") {
		c.Workers = yc.Workers
	}
	if yc.Resource != "" && !changed("resource") {
		c.Resource = yc.Resource
	}
	if yc.Kernel != "" && !changed("kernel") {
		c.Kernel = yc.Kernel
	}
	if yc.ExplorerDSN != "" && !changed("explorer-dsn") {
		c.ExplorerDSN = yc.ExplorerDSN
	}
	return nil
}

// LogLevel returns the log threshold for the verbosity flags. The most
// verbose flag wins.
func (c *Config) LogLevel() zerolog.Level {
	switch {
	case c.Debug:
		return zerolog.DebugLevel
	case c.Verbose:
		return zerolog.InfoLevel
	case c.Quiet:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// WindowOptions returns the window flags for window.NewRequest.
func (c *Config) WindowOptions() window.Options {
	return window.Options{
		SinceLast:  c.SinceLast,
		Start:      c.Start,
		End:        c.End,
		OffsetDays: c.OffsetDays,
	}
}

// Validate checks flag values and combinations.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("--log-format must be text or json, got %q", c.LogFormat)
	}
	switch c.Unmapped {
	case "":
		c.Unmapped = UnmappedProcess
	case UnmappedProcess, UnmappedSkip:
	default:
		return fmt.Errorf("--unmapped must be %s or %s, got %q", UnmappedProcess, UnmappedSkip, c.Unmapped)
	}
	if c.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", c.Workers)
	}
	if c.OffsetDays < 0 {
		return fmt.Errorf("--offset must not be negative, got %d", c.OffsetDays)
	}
	if c.CalculateControls && c.RecalculateControls {
		return fmt.Errorf("--calculate-controls and --re-calculate-controls are mutually exclusive")
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	return nil
}

// ValidateWithDSN checks flags and the warehouse DSN.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or AKLOAD_DB_URL is required")
	}
	return nil
}

// ValidateIngest checks everything an ingestion run needs, including the
// explorer DSN.
func (c *Config) ValidateIngest() error {
	if err := c.ValidateWithDSN(); err != nil {
		return err
	}
	if c.ExplorerDSN == "" {
		return fmt.Errorf("--explorer-dsn or AKLOAD_EXPLORER_URL is required")
	}
	return nil
}
