package app

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/supervisor"
)

func serveOneControlRequest(t *testing.T, ln net.Listener, resp supervisor.Response) <-chan supervisor.Request {
	t.Helper()
	received := make(chan supervisor.Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req supervisor.Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			return
		}
		received <- req
		_ = json.NewEncoder(conn).Encode(resp)
	}()
	return received
}

func TestDialSupervisorDisabledReturnsError(t *testing.T) {
	dial := dialSupervisor(config.SupervisorConfig{Enabled: false}, "secret")

	_, err := dial(t.Context(), map[string]string{"command": "status"})
	assert.Error(t, err)
}

func TestDialSupervisorRoundTripsStatusRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := serveOneControlRequest(t, ln, supervisor.Response{OK: true, Result: map[string]bool{"running": true}})

	dial := dialSupervisor(config.SupervisorConfig{Enabled: true, SocketAddress: ln.Addr().String()}, "secret")
	result, err := dial(t.Context(), map[string]interface{}{"command": supervisor.CmdStatus})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"running": true}, result)

	req := <-received
	assert.Equal(t, supervisor.CmdStatus, req.Command)
	assert.NotEmpty(t, req.Token)

	auth := supervisor.NewAuthenticator("secret")
	assert.NoError(t, auth.Verify(req.Token))
}

func TestDialSupervisorPropagatesBackendError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serveOneControlRequest(t, ln, supervisor.Response{OK: false, Error: "boom"})

	dial := dialSupervisor(config.SupervisorConfig{Enabled: true, SocketAddress: ln.Addr().String()}, "secret")
	_, err = dial(t.Context(), map[string]interface{}{"command": supervisor.CmdStatus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDialSupervisorUnreachableAddressErrors(t *testing.T) {
	dial := dialSupervisor(config.SupervisorConfig{Enabled: true, SocketAddress: "127.0.0.1:1"}, "secret")

	_, err := dial(t.Context(), map[string]interface{}{"command": supervisor.CmdStatus})
	assert.Error(t, err)
}
