package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/akload/internal/exitcode"
	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/outcomes"
	"github.com/gyeh/akload/internal/report"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes FILE",
	Short: "Validate an outcome ledger and print its totals (no database access)",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutcomes,
}

func init() {
	rootCmd.AddCommand(outcomesCmd)
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	path := args[0]

	sha, err := outcomes.FileHash(path)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash file")
		os.Exit(exitcode.ConfigError)
	}

	reader, err := outcomes.Open(path)
	if err != nil {
		log.Error().Err(err).Msg("failed to open outcome ledger")
		os.Exit(exitcode.ConfigError)
	}
	defer reader.Close()

	if err := outcomes.ValidateSchema(reader.Schema()); err != nil {
		log.Error().Err(err).Msg("schema validation failed")
		os.Exit(exitcode.ConfigError)
	}

	s, err := outcomes.Summarize(reader)
	if err != nil {
		log.Error().Err(err).Msg("invalid outcome ledger")
		os.Exit(exitcode.ConfigError)
	}

	fmt.Println("=== akload outcomes ===")
	fmt.Printf("File:     %s\n", path)
	fmt.Printf("SHA-256:  %s\n", sha)
	fmt.Printf("Rows:     %d\n", s.Rows)
	fmt.Printf("Runs:     %d\n", len(s.RunIDs))
	fmt.Println()
	for _, o := range model.AllOutcomes {
		if n := s.Counters.Get(o); n > 0 {
			fmt.Printf("  %-18s %d\n", o, n)
		}
	}
	fmt.Println()
	fmt.Println(report.Summary(s.Counters))
	return nil
}
