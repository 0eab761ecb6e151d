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
	Use:   "forseti",
	Short: "Forseti - forward-chaining rule engine for risk decisions",
	Long: `Forseti is a forward-chaining production rule engine that evaluates
declarative YAML rules against batches of facts.

Each evaluation runs in an isolated session: facts are inserted into working
memory, rules fire to a fixpoint under deterministic conflict resolution,
and the result carries the final facts, risk tags, and a complete firing
trace explaining every decision.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
