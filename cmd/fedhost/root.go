package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fedhost",
	Short: "Runtime host for federated modules with shared-dependency negotiation",
	Long: `fedhost composes independently built and deployed modules at runtime.

It resolves a manifest of remotes, loads each remote's entry descriptor,
negotiates shared-dependency instances between the host and its remotes,
and serves exposed modules on demand with at-most-once-load semantics.

Quick start:
  fedhost validate  # Check configuration and manifest
  fedhost serve     # Start the host

Inspection:
  fedhost remotes   # List manifest remotes
  fedhost remotes --probe`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "fedhost.yaml", "config file path")
}
