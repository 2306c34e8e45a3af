package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tunnelgate/gateway/internal/config"
)

// versionCheckTimeout bounds the reachability probe against a running
// gateway's dashboard API.
const versionCheckTimeout = 5 * time.Second

var versionConfigPath string

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tunnelgate CLI version",
		Long: `Prints the CLI version and, if a gateway is reachable at the
configured dashboard address, reports that it is running.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tunnelgate version %s\n", rootCmd.Version)

			running, err := probeRunning(versionConfigPath)
			if err != nil || !running {
				fmt.Fprintln(cmd.OutOrStdout(), "\nGateway: (not running)")
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nGateway: running")
		},
	}
	cmd.Flags().StringVar(&versionConfigPath, "config-path", "", "configuration directory (default: current directory)")
	return cmd
}

func probeRunning(dir string) (bool, error) {
	if dir == "" {
		dir = "."
	}
	gw, err := config.Load(dir)
	if err != nil {
		return false, err
	}
	if !gw.Dashboard.Enabled {
		return false, nil
	}
	client := &http.Client{Timeout: versionCheckTimeout}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/api/tools", gw.Dashboard.Host, gw.Dashboard.Port))
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
