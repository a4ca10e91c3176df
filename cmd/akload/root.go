package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/akload/internal/config"
	"github.com/gyeh/akload/internal/exitcode"
	"github.com/gyeh/akload/internal/logging"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "akload",
	Short: "App kernel results → performance warehouse loader",
	Long: "Pulls completed app kernel runs from the explorer database, classifies and stores them " +
		"in the Postgres warehouse, and records an audited ingestion log.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigFile == "" {
			return nil
		}
		return cfg.LoadFromFile(cfg.ConfigFile, func(name string) bool {
			return cmd.Flags().Changed(name)
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("AKLOAD_DB_URL"), "Warehouse Postgres connection string (or set AKLOAD_DB_URL)")
	pf.StringVar(&cfg.ExplorerDSN, "explorer-dsn", os.Getenv("AKLOAD_EXPLORER_URL"), "Explorer Postgres connection string (or set AKLOAD_EXPLORER_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log progress at info level")
	pf.BoolVarP(&cfg.Debug, "debug", "d", false, "Log at debug level")
	pf.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Log errors only")
	pf.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML config file")
	pf.StringVar(&cfg.Source, "source", config.DefaultSource, "Source tag of ingestion log entries")
}

func setupLogger() zerolog.Logger {
	return logging.Setup(cfg.LogFormat, cfg.LogLevel())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.ConfigError)
	}
}
