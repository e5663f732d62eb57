package stage

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// exitNotFound mirrors the shell's status for a command that cannot be run.
const exitNotFound = 127

// Runner invokes an external tool and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools as child processes, forwarding their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner that forwards tool output to stdout and stderr.
// Nil writers fall back to the process streams.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	return &ExecRunner{Stdout: stdout, Stderr: stderr}
}

// Run executes name with args. A non-zero exit yields a *ToolError.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	code := exitNotFound

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal.
			code = 1
		}
	}

	return &ToolError{Tool: name, Args: args, ExitCode: code, Err: err}
}
