package agentexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// RunResult captures one command invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Runner executes shell commands. Tests substitute a scripted runner.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (RunResult, error)
}

// ExecRunner runs commands through the shell.
type ExecRunner struct{}

// Run executes the command with the given timeout. A non-zero exit is not
// an error; the caller inspects the exit code.
func (ExecRunner) Run(ctx context.Context, command string, timeout time.Duration) (RunResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}
