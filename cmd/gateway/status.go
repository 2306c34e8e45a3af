package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/dashboard"
	"github.com/tunnelgate/gateway/internal/upstream"
)

var statusConfigPath string

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tools and upstream health from a running gateway",
		Long: `Queries a running gateway's dashboard API and prints the current
tool catalog and upstream health as tables.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	cmd.Flags().StringVar(&statusConfigPath, "config-path", "", "configuration directory (default: current directory)")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir := statusConfigPath
	if dir == "" {
		dir = "."
	}
	gw, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !gw.Dashboard.Enabled {
		return fmt.Errorf("dashboard is disabled in configuration; cannot query status")
	}
	base := fmt.Sprintf("http://%s:%d", gw.Dashboard.Host, gw.Dashboard.Port)

	client := &http.Client{Timeout: 5 * time.Second}

	var tools []mcp.Tool
	if err := getJSON(client, base+"/api/tools", &tools); err != nil {
		return fmt.Errorf("fetching tools: %w", err)
	}
	var snapshots []upstream.Snapshot
	if err := getJSON(client, base+"/api/upstreams", &snapshots); err != nil {
		return fmt.Errorf("fetching upstreams: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, dashboard.FormatUpstreamsTable(snapshots))
	fmt.Fprintln(out, dashboard.FormatToolsTable(tools))
	return nil
}

func getJSON(client *http.Client, url string, v interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
