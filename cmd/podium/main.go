// Package main is the entry point for the podium session manager CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "0.1.0"
)

// Global flags.
var (
	configPath    string
	verbose       bool
	correlationID string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "podium",
		Short: "Named LLM conversation sessions over one-shot JSON-RPC",
		Long: `Podium manages independent, named conversational sessions with an
external language-model backend. A conductor process drives it over
JSON-RPC 2.0: each invocation reads one request document from stdin,
executes it against filesystem-persisted session state, and writes one
response document to stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $PODIUM_CONFIG)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
