package gateway

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDashboardConfig(t *testing.T, enabled bool, host string, port int) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf("dashboard:\n  enabled: %t\n  host: %q\n  port: %d\n", enabled, host, port)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestProbeRunningDashboardDisabled(t *testing.T) {
	dir := writeDashboardConfig(t, false, "localhost", 8090)

	running, err := probeRunning(dir)
	require.NoError(t, err)
	require.False(t, running)
}

func TestProbeRunningReachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	dir := writeDashboardConfig(t, true, u.Hostname(), port)

	running, err := probeRunning(dir)
	require.NoError(t, err)
	require.True(t, running)
}

func TestProbeRunningUnreachableGatewayIsNotRunning(t *testing.T) {
	dir := writeDashboardConfig(t, true, "127.0.0.1", 1)

	running, err := probeRunning(dir)
	require.NoError(t, err)
	require.False(t, running)
}

func TestProbeRunningMissingConfigDirFallsBackToDefaults(t *testing.T) {
	_, err := probeRunning(t.TempDir())
	require.NoError(t, err)
}
