package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/supervisor"
)

// dialSupervisor builds the dashboard's controlDial callback: it
// forwards a decoded control request straight over the supervisor's
// own JSON-over-TCP framing, so the dashboard never needs to know the
// wire shape beyond what the caller already sent it.
func dialSupervisor(cfg config.SupervisorConfig, jwtSecret string) func(ctx context.Context, body interface{}) (interface{}, error) {
	return func(ctx context.Context, body interface{}) (interface{}, error) {
		if !cfg.Enabled {
			return nil, fmt.Errorf("supervisor not enabled")
		}

		var wire struct {
			Command supervisor.Command `json:"command"`
			Payload json.RawMessage    `json:"payload,omitempty"`
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decoding control request: %w", err)
		}

		auth := supervisor.NewAuthenticator(jwtSecret)
		token, err := auth.IssueToken("dashboard", time.Minute)
		if err != nil {
			return nil, fmt.Errorf("issuing control token: %w", err)
		}

		dialer := net.Dialer{Timeout: 5 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", cfg.SocketAddress)
		if err != nil {
			return nil, fmt.Errorf("dialing supervisor at %s: %w", cfg.SocketAddress, err)
		}
		defer conn.Close()

		req := supervisor.Request{Token: token, Command: wire.Command, Payload: wire.Payload}
		if err := json.NewEncoder(conn).Encode(req); err != nil {
			return nil, fmt.Errorf("sending control request: %w", err)
		}

		var resp supervisor.Response
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return nil, fmt.Errorf("reading control response: %w", err)
		}
		if !resp.OK {
			return nil, fmt.Errorf("supervisor: %s", resp.Error)
		}
		return resp.Result, nil
	}
}
