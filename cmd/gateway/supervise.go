package gateway

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/supervisor"
)

func selfExecutablePath() (string, error) {
	return os.Executable()
}

var superviseConfigPath string

// newSuperviseCmd wraps a single `tunnelgate serve` child in the process
// supervisor: a distinct OS process that owns the child's lifecycle and
// exposes a control socket for restart/status commands, independent of
// the gateway process it watches.
func newSuperviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "supervise",
		Short:  "Run the gateway under the process supervisor",
		Hidden: true,
		Long: `Starts the gateway as a supervised child process, restarting it on
crash and exposing a control socket that the dashboard's /api/control
endpoint forwards commands to.`,
		Args: cobra.NoArgs,
		RunE: runSupervise,
	}
	cmd.Flags().StringVar(&superviseConfigPath, "config-path", "", "configuration directory (default: current directory)")
	return cmd
}

func runSupervise(cmd *cobra.Command, args []string) error {
	dir := superviseConfigPath
	if dir == "" {
		dir = "."
	}
	gw, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !gw.Supervisor.Enabled {
		return fmt.Errorf("supervisor is disabled in configuration")
	}

	secrets, err := config.ResolveSecrets(gw)
	if err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	jwtSecret := secrets["supervisor.jwtSecret"]
	if jwtSecret == "" {
		return fmt.Errorf("supervisor.jwtSecretFile must be configured")
	}

	childBinary := gw.Supervisor.ChildBinary
	if childBinary == "" {
		exe, err := selfExecutablePath()
		if err != nil {
			return fmt.Errorf("locating own executable: %w", err)
		}
		childBinary = exe
	}
	childArgs := gw.Supervisor.ChildArgs
	if len(childArgs) == 0 {
		childArgs = []string{"serve", "--config-path", dir}
	}

	auth := supervisor.NewAuthenticator(jwtSecret)
	sup := supervisor.New(childBinary, childArgs, gw.Supervisor.HealthURL, gw.Supervisor.SocketAddress, auth, gw.Supervisor.GracePeriod)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("starting supervised gateway: %w", err)
	}
	return sup.Run(ctx)
}
