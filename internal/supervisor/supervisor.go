// Package supervisor implements C8: a standalone OS process that owns
// exactly one child — the gateway binary — and exposes a local control
// socket for restarting, stopping, health-checking, and
// build-then-restart cycles independent of the gateway's own MCP wire
// protocol.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/tunnelgate/gateway/internal/obslog"
)

type Command string

const (
	CmdRestart        Command = "restart"
	CmdStop           Command = "stop"
	CmdStatus         Command = "status"
	CmdHealthCheck    Command = "health_check"
	CmdReloadConfig   Command = "reload_config"
	CmdShutdown       Command = "shutdown"
	CmdCustomRestart  Command = "custom_restart"
	CmdExecuteCommand Command = "execute_command"
)

type Request struct {
	Token   string          `json:"token"`
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Response struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// Status reports the supervised child's current state.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Supervisor owns the one child process and serializes every operation
// that touches it.
type Supervisor struct {
	binary string
	args   []string

	healthURL     string
	gracePeriod   time.Duration
	controlAddr   string
	auth          *Authenticator

	mu        sync.Mutex
	cmd       *exec.Cmd
	startedAt time.Time
}

func New(binary string, args []string, healthURL, controlAddr string, auth *Authenticator, gracePeriod time.Duration) *Supervisor {
	return &Supervisor{
		binary:      binary,
		args:        args,
		healthURL:   healthURL,
		controlAddr: controlAddr,
		auth:        auth,
		gracePeriod: gracePeriod,
	}
}

// Start launches the child if it isn't already running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx, s.args)
}

func (s *Supervisor) startLocked(ctx context.Context, args []string) error {
	if s.cmd != nil && s.cmd.ProcessState == nil {
		return fmt.Errorf("child already running with pid %d", s.cmd.Process.Pid)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting child %s: %w", s.binary, err)
	}
	s.cmd = cmd
	s.startedAt = time.Now()
	obslog.Info("supervisor", "started child pid=%d", cmd.Process.Pid)
	return nil
}

// stopLocked sends SIGTERM, waits up to gracePeriod, then SIGKILLs.
func (s *Supervisor) stopLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	pid := s.cmd.Process.Pid
	_ = s.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		obslog.Info("supervisor", "child pid=%d exited after SIGTERM", pid)
	case <-time.After(s.gracePeriod):
		obslog.Warn("supervisor", "child pid=%d did not exit in grace period, sending SIGKILL", pid)
		_ = s.cmd.Process.Kill()
		<-done
	}
	s.cmd = nil
	return nil
}

// Restart stops the current child (if any) and starts a new one,
// optionally with overridden args.
func (s *Supervisor) Restart(ctx context.Context, overrideArgs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(); err != nil {
		return err
	}
	args := s.args
	if overrideArgs != nil {
		args = overrideArgs
	}
	return s.startLocked(ctx, args)
}

func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return Status{Running: false}
	}
	return Status{Running: true, PID: s.cmd.Process.Pid, StartedAt: s.startedAt}
}

// Run serves control connections on controlAddr until ctx is
// cancelled, notifying systemd readiness once listening.
func (s *Supervisor) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.controlAddr)
	if err != nil {
		return fmt.Errorf("supervisor listen on %s: %w", s.controlAddr, err)
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		obslog.Warn("supervisor", "sd_notify ready failed: %v", err)
	} else if ok {
		obslog.Info("supervisor", "notified systemd readiness")
	}
	obslog.Info("supervisor", "control socket listening on %s", s.controlAddr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("supervisor accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Supervisor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Minute)) // CustomRestart can run long build steps

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		writeResponse(conn, Response{OK: false, Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}
	if err := s.auth.Verify(req.Token); err != nil {
		writeResponse(conn, Response{OK: false, Error: "unauthorized"})
		return
	}
	writeResponse(conn, s.dispatch(ctx, req))
}

func writeResponse(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		obslog.Warn("supervisor", "writing response: %v", err)
	}
}

func (s *Supervisor) dispatch(ctx context.Context, req Request) Response {
	switch req.Command {
	case CmdStatus:
		return Response{OK: true, Result: s.Status()}

	case CmdHealthCheck:
		healthy, err := s.checkHealth(ctx)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Result: map[string]bool{"healthy": healthy}}

	case CmdRestart:
		var payload struct {
			Args []string `json:"args,omitempty"`
		}
		_ = json.Unmarshal(req.Payload, &payload)
		if err := s.Restart(ctx, payload.Args); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Result: s.Status()}

	case CmdStop:
		if err := s.Stop(); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}

	case CmdReloadConfig:
		var payload struct {
			Path string `json:"path,omitempty"`
		}
		_ = json.Unmarshal(req.Payload, &payload)
		args := s.args
		if payload.Path != "" {
			args = append(append([]string{}, s.args...), "--config", payload.Path)
		}
		if err := s.Restart(ctx, args); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}

	case CmdCustomRestart:
		var payload CustomRestartRequest
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return Response{OK: false, Error: fmt.Sprintf("decoding custom_restart payload: %v", err)}
		}
		result, err := s.customRestart(ctx, payload)
		if err != nil {
			return Response{OK: false, Error: err.Error(), Result: result}
		}
		return Response{OK: true, Result: result}

	case CmdExecuteCommand:
		var payload ExecuteCommandRequest
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return Response{OK: false, Error: fmt.Sprintf("decoding execute_command payload: %v", err)}
		}
		result := runOneOff(ctx, payload)
		return Response{OK: result.ExitCode == 0, Result: result}

	case CmdShutdown:
		_ = s.Stop()
		return Response{OK: true}

	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}
