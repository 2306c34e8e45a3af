package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// allowedMakeTargets and allowedCargoSubcommands are the fixed
// safe-by-default allow-lists for CustomRestart's pre/post commands.
var (
	allowedMakeTargets = map[string]struct{}{
		"build": {}, "test": {}, "check": {}, "fmt": {}, "clippy": {},
		"clean": {}, "run": {}, "docs": {}, "audit": {},
	}
	allowedCargoSubcommands = map[string]struct{}{
		"build": {}, "test": {}, "check": {}, "fmt": {}, "clippy": {},
		"clean": {}, "run": {}, "doc": {}, "audit": {},
	}
)

// PreCommand is one step of a CustomRestart's pre_commands or
// post_commands list: a make target, a cargo subcommand, or — only
// when explicitly acknowledged unsafe — an arbitrary shell command.
type PreCommand struct {
	Make       string `json:"make,omitempty"`
	Cargo      string `json:"cargo,omitempty"`
	Shell      string `json:"shell,omitempty"`
	IsSafe     *bool  `json:"isSafe,omitempty"` // must be explicitly false to permit Shell
}

type CustomRestartRequest struct {
	PreCommands  []PreCommand `json:"preCommands,omitempty"`
	StartArgs    []string     `json:"startArgs,omitempty"`
	PostCommands []PreCommand `json:"postCommands,omitempty"`
}

// CommandResult mirrors the spec's aggregate result shape: stdout,
// stderr, exit code, and wall-clock duration of one executed step.
type CommandResult struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

type CustomRestartResult struct {
	PreCommands  []CommandResult `json:"preCommands"`
	Restarted    bool            `json:"restarted"`
	PostCommands []CommandResult `json:"postCommands"`
}

// customRestart runs pre_commands, restarts the child with startArgs,
// then runs post_commands, stopping early (without restarting) if any
// pre-command fails.
func (s *Supervisor) customRestart(ctx context.Context, req CustomRestartRequest) (*CustomRestartResult, error) {
	result := &CustomRestartResult{}

	for _, pc := range req.PreCommands {
		cr, err := runAllowListed(ctx, pc)
		result.PreCommands = append(result.PreCommands, cr)
		if err != nil {
			return result, fmt.Errorf("pre-command %q: %w", cr.Command, err)
		}
		if cr.ExitCode != 0 {
			return result, fmt.Errorf("pre-command %q exited %d", cr.Command, cr.ExitCode)
		}
	}

	if err := s.Restart(ctx, req.StartArgs); err != nil {
		return result, fmt.Errorf("restart: %w", err)
	}
	result.Restarted = true

	for _, pc := range req.PostCommands {
		cr, err := runAllowListed(ctx, pc)
		result.PostCommands = append(result.PostCommands, cr)
		if err != nil {
			return result, fmt.Errorf("post-command %q: %w", cr.Command, err)
		}
	}

	return result, nil
}

// runAllowListed executes pc, rejecting arbitrary shell commands unless
// IsSafe is explicitly set to false (the spec's "unsafe-allowed"
// acknowledgement).
func runAllowListed(ctx context.Context, pc PreCommand) (CommandResult, error) {
	switch {
	case pc.Make != "":
		if _, ok := allowedMakeTargets[pc.Make]; !ok {
			return CommandResult{Command: "make " + pc.Make}, fmt.Errorf("make target %q not in allow-list", pc.Make)
		}
		return runCommand(ctx, "make", []string{pc.Make})

	case pc.Cargo != "":
		if _, ok := allowedCargoSubcommands[pc.Cargo]; !ok {
			return CommandResult{Command: "cargo " + pc.Cargo}, fmt.Errorf("cargo subcommand %q not in allow-list", pc.Cargo)
		}
		return runCommand(ctx, "cargo", []string{pc.Cargo})

	case pc.Shell != "":
		if pc.IsSafe == nil || *pc.IsSafe {
			return CommandResult{Command: pc.Shell}, fmt.Errorf("shell command rejected: requires isSafe=false acknowledgement")
		}
		return runCommand(ctx, "sh", []string{"-c", pc.Shell})

	default:
		return CommandResult{}, fmt.Errorf("empty command")
	}
}

// ExecuteCommandRequest is a one-off command, always subject to the
// same allow-list/acknowledgement rule as CustomRestart's steps.
type ExecuteCommandRequest struct {
	PreCommand
	Timeout time.Duration `json:"timeout,omitempty"`
}

func runOneOff(ctx context.Context, req ExecuteCommandRequest) CommandResult {
	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	result, err := runAllowListed(runCtx, req.PreCommand)
	if err != nil && result.Stderr == "" {
		result.Stderr = err.Error()
	}
	return result
}

func runCommand(ctx context.Context, name string, args []string) (CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Command:  name + " " + fmt.Sprint(args),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}
