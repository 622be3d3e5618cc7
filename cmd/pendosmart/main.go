package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "pendosmart",
	Short:   "Smartling translation sync and review service",
	Version: version,
	Long: `pendosmart keeps a local review copy of Smartling translations.

The server syncs source strings and translations from the Smartling API
into SQLite, scores translations with a local model, and serves the
review endpoints the dashboard talks to. The remaining commands are a
thin CLI over that HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(translationsCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
