package agentexec

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// ExecStatus is the terminal state of one Layer E invocation.
type ExecStatus string

const (
	StatusSuccess       ExecStatus = "SUCCESS"
	StatusFailed        ExecStatus = "FAILED"
	StatusTimeout       ExecStatus = "TIMEOUT"
	StatusRetryExceeded ExecStatus = "RETRY_EXCEEDED"
)

// ExecResult is the Layer E output.
type ExecResult struct {
	Status        ExecStatus `json:"status"`
	DurationMs    int64      `json:"duration_ms"`
	ExitCode      int        `json:"exit_code"`
	Stdout        string     `json:"stdout"`
	Stderr        string     `json:"stderr"`
	RetryAttempts int        `json:"retry_attempts"`
	CommandUsed   string     `json:"command_used"`
	OutputLines   []string   `json:"output_lines"`
}

// maxJitter is the random slice added to every backoff sleep.
const maxJitter = 500 * time.Millisecond

// Executor runs commands under a retry profile.
type Executor struct {
	Runner Runner
	// TransientPatterns are stderr fragments that mark an error retryable.
	TransientPatterns []string

	// sleep and jitter are swappable in tests.
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// NewExecutor creates a Layer E executor with the given transient-error
// patterns.
func NewExecutor(runner Runner, transientPatterns []string) *Executor {
	return &Executor{
		Runner:            runner,
		TransientPatterns: transientPatterns,
		sleep:             time.Sleep,
		jitter:            func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
}

// Execute runs the command under the profile: retry transient errors and
// timeouts with backoff plus jitter, stop immediately on hard failures, and
// honor the profile's extra success exit codes.
func (e *Executor) Execute(ctx context.Context, profile Profile, command string) ExecResult {
	full := command
	if len(profile.Flags) > 0 {
		full = command + " " + strings.Join(profile.Flags, " ")
	}

	start := time.Now()
	result := ExecResult{CommandUsed: full}

	for attempt := 0; attempt <= profile.MaxRetries; attempt++ {
		run, err := e.Runner.Run(ctx, full, profile.Timeout())
		if err != nil {
			result.Status = StatusFailed
			result.Stderr = err.Error()
			break
		}

		result.ExitCode = run.ExitCode
		result.Stdout = run.Stdout
		result.Stderr = run.Stderr

		switch {
		case !run.TimedOut && profile.successful(run.ExitCode):
			result.Status = StatusSuccess
		case run.TimedOut:
			if attempt < profile.MaxRetries {
				e.backoff(profile, attempt)
				result.RetryAttempts++
				continue
			}
			result.Status = StatusTimeout
		case e.transient(run.Stderr):
			if attempt < profile.MaxRetries {
				e.backoff(profile, attempt)
				result.RetryAttempts++
				continue
			}
			result.Status = StatusRetryExceeded
		default:
			result.Status = StatusFailed
		}
		break
	}

	result.DurationMs = time.Since(start).Milliseconds()
	if result.Stdout != "" {
		result.OutputLines = strings.Split(strings.TrimRight(result.Stdout, "\n"), "\n")
	}
	return result
}

func (e *Executor) backoff(profile Profile, attempt int) {
	e.sleep(profile.RetryBackoff.Backoff(attempt) + e.jitter())
}

func (e *Executor) transient(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, p := range e.TransientPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
