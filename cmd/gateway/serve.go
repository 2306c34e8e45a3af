package gateway

import (
	"context"
	"fmt"

	"github.com/tunnelgate/gateway/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveYolo disables the capability denylist for destructive tool calls.
var serveYolo bool

// serveSilent discards log output, leaving only explicit API responses.
var serveSilent bool

// serveConfigPath points at a directory holding config.yaml and the
// capability/upstream directories it references.
var serveConfigPath string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tunnelgate gateway",
		Long: `Starts the gateway: loads configuration, connects every configured
upstream, and serves the merged tool, resource, and prompt catalog over
every enabled transport until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&serveYolo, "yolo", false, "disable the denylist for destructive tool calls (use with caution)")
	cmd.Flags().BoolVar(&serveSilent, "silent", false, "discard log output")
	cmd.Flags().StringVar(&serveConfigPath, "config-path", "", "configuration directory (default: current directory)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveYolo, serveSilent, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}
