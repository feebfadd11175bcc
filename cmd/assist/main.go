package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "assist",
	Short:   "Retrieval-grounded reply suggestions for live huddle conversations",
	Version: version,
	Long: `assist suggests replies for live conversations, grounded in past huddle
interactions and ingested reference documents.

Start the server with "assist start", then use the other commands to talk
to it.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(toneCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(boostCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
