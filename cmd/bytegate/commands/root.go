// Package commands holds the bytegate CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/harunnryd/bytegate/pkg/runner"
)

var rootCmd = &cobra.Command{
	Use:           "bytegate",
	Short:         "Real-time voice assistant gateway",
	Version:       runner.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sayCmd)
}
