// Package gateway implements the tunnelgate command-line entry point:
// serve, status, version, and self-update.
package gateway

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeUnreachable indicates the running gateway could not be reached.
	ExitCodeUnreachable = 2
)

// rootCmd is the entry point when tunnelgate is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tunnelgate",
	Short: "Run and control the tunnelgate MCP gateway",
	Long: `tunnelgate aggregates multiple upstream MCP servers behind a single
gateway, merging their tools, resources, and prompts into one catalog
and exposing it over stdio, HTTP, SSE, WebSocket, and gRPC.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, typically injected
// from main at build time via -ldflags.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current build version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command, exiting the process with a semantic
// exit code on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tunnelgate version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newSuperviseCmd())
	rootCmd.AddCommand(newReplCmd())
}
