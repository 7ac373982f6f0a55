// Package main implements the sqlguard CLI: offline statement analysis,
// policy tooling and the governance API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sqlguard",
		Short:         "SQL query governance",
		Long:          `sqlguard classifies, authorizes, rewrites and redacts SQL statements before they reach a database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $SQLGUARD_CONFIG)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(checkCmd(&configPath))
	rootCmd.AddCommand(executeCmd(&configPath))
	rootCmd.AddCommand(redactCmd())
	rootCmd.AddCommand(policyCmd(&configPath))
	rootCmd.AddCommand(accessCmd())
	rootCmd.AddCommand(tokenCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))

	return rootCmd
}
