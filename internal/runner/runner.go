// Package runner executes composed command lines in a POSIX shell.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultShell runs every command line.
	DefaultShell = "/bin/sh"

	// CommandNotFoundExitCode is what POSIX shells exit with when the
	// command word cannot be found.
	CommandNotFoundExitCode = 127
)

var (
	// ErrLaunch is the sentinel wrapped by LaunchError.
	ErrLaunch = errors.New("failed to launch command")
	// ErrInterrupted is the sentinel wrapped by InterruptedError.
	ErrInterrupted = errors.New("command interrupted")
)

type (
	// Command is one shell command line and the directory it runs in.
	Command struct {
		Line string
		Dir  string
	}

	// Result is the outcome of a command that ran to exit.
	Result struct {
		ExitCode int
		Output   string // stdout and stderr, interleaved
		Duration time.Duration
	}

	// Runner executes commands.
	Runner interface {
		Run(ctx context.Context, cmd Command) (*Result, error)
	}

	// LaunchError is returned when the process could not be started.
	LaunchError struct {
		Line string
		Dir  string
		Err  error
	}

	// InterruptedError is returned when waiting on the process was cut short
	// by cancellation or timeout. Output holds what was captured so far.
	InterruptedError struct {
		Line   string
		Output string
		Err    error
	}
)

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q in %s: %v", e.Line, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() []error { return []error{ErrLaunch, e.Err} }

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("command %q interrupted: %v", e.Line, e.Err)
}

func (e *InterruptedError) Unwrap() []error { return []error{ErrInterrupted, e.Err} }

// Success reports whether the command exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// ShellRunner runs commands through `<shell> -c`.
type ShellRunner struct {
	// Shell overrides DefaultShell
	Shell string
	// Timeout bounds each run; zero means no limit
	Timeout time.Duration

	logger *log.Logger
}

// NewShellRunner creates a runner that logs through logger.
func NewShellRunner(shell string, timeout time.Duration, logger *log.Logger) *ShellRunner {
	if shell == "" {
		shell = DefaultShell
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ShellRunner{Shell: shell, Timeout: timeout, logger: logger}
}

// Run starts the command, drains its combined output to EOF and only then
// waits for exit. Cancelling ctx or hitting the timeout kills the whole
// process group.
func (r *ShellRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Shell, "-c", c.Line)
	cmd.Dir = c.Dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Line: c.Line, Dir: c.Dir, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	start := time.Now()
	r.logger.Debug("starting command", "line", c.Line, "dir", c.Dir)
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Line: c.Line, Dir: c.Dir, Err: err}
	}

	var output bytes.Buffer
	_, copyErr := io.Copy(&output, stdout)
	waitErr := cmd.Wait()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Debug("command interrupted", "line", c.Line, "error", ctxErr, "duration", duration)
		return nil, &InterruptedError{Line: c.Line, Output: output.String(), Err: ctxErr}
	}

	result := &Result{Output: output.String(), Duration: duration}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &InterruptedError{Line: c.Line, Output: output.String(), Err: waitErr}
		}
		result.ExitCode = exitErr.ExitCode()
	}
	if copyErr != nil {
		r.logger.Debug("output copy ended early", "line", c.Line, "error", copyErr)
	}

	r.logger.Debug("command finished", "line", c.Line, "exit_code", result.ExitCode, "duration", duration)
	return result, nil
}
