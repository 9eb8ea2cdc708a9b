// Package commands implements the dfsctl command tree, a thin operator
// CLI over the three daemons' HTTP interfaces.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dfsctl",
	Short: "Operator CLI for the DFS coordination services",
	Long: `dfsctl talks to a Directory Registry, Lease Manager, or Storage Node
over their HTTP interfaces for inspection and manual intervention.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(leaseCmd)
	rootCmd.AddCommand(storageCmd)
}
