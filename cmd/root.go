// Package cmd defines the CLI commands for the advisoryd executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisoryd",
		Short: "Travel advisory ingestion service",
		Long: `advisoryd fetches official travel advisories from configured
government and humanitarian sources, normalizes them into a canonical
schema, and persists them idempotently so repeated runs never duplicate
records.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point. A run where at least one source failed and
// nothing at all was persisted exits non-zero.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
