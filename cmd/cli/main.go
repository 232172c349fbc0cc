package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command.
type options struct {
	baseURL string
	actor   string
	output  string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "coopledger-cli",
		Short:         "CoopLedger CLI tool",
		Long:          `A command line interface for the CoopLedger API and for offline SQLite snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want %s or %s)", opts.output, outputTable, outputJSON)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the CoopLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", "cli", "Actor ID recorded in the audit trail")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")

	rootCmd.AddCommand(
		ledgerCmd(opts),
		maturityCmd(opts),
		reportCmd(opts),
		memberCmd(opts),
		offlineCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}
