package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hireloop",
		Short: "Contract escrow API for businesses and their freelancers",
		// Running the binary with no subcommand serves the API.
		RunE: runServe,
	}
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory holding an optional .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(feeCmd())
	rootCmd.AddCommand(payoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
