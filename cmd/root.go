// Package cmd defines and implements the CLI commands for the mediascraper
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediascraper",
		Short: "A media scraping service for web pages.",
		Long: `mediascraper ingests sets of page URLs, fetches each page, extracts
embedded images and videos with site-aware heuristics, and persists the
discovered assets together with a per-URL processing lifecycle.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; environment variables apply on top)")
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
