package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - certificate discovery and TLS context engine",
	Long: `Callisto discovers TLS certificates on disk and builds TLS contexts
from them for multi-tenant servers.

It provides:
  - A certificate index over a directory tree, keyed by asserted identity
  - Credential resolution for hosts and services, with convention matching
  - Layered TLS option merging into ready-to-use TLS configurations
  - SNI certificate selection for live listeners
  - A certificate observation history with expiry reporting

For more information, visit: https://github.com/mercator-hq/callisto`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "callisto.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
