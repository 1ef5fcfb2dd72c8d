package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-hq/ABMX/cmd/abmx/commands"
	"github.com/meridian-hq/ABMX/logger"
)

var rootCmd = &cobra.Command{
	Use:   "abmx",
	Short: "ABMX - CRM relevance scoring for account-based marketing",
	Long: `ABMX scores CRM records (companies, contacts, deals) for ABM relevance.

Records arrive over a CRM webhook or get picked up by the periodic sweep;
either way they run through the same enrich -> prompt/score -> persist flow.

Available commands:
  serve   - Start the webhook server, scheduler, and scoring pipeline
  score   - Score a single entity from the command line
  version - Show version information

Examples:
  abmx serve                                # Start with config defaults
  abmx serve --db-path tmp/abmx.db -vv      # Debug logging, custom database
  abmx score --type company --id c-1 --prop hiring=true`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetVerbosity(verbosity)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of human-readable output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ScoreCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
