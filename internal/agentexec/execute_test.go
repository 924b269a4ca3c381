package agentexec

import (
	"context"
	"testing"
	"time"

	"github.com/gaiaops/gaia/internal/config"
)

// scriptedRunner replays canned results in order.
type scriptedRunner struct {
	results  []RunResult
	commands []string
	i        int
}

func (r *scriptedRunner) Run(_ context.Context, command string, _ time.Duration) (RunResult, error) {
	r.commands = append(r.commands, command)
	if r.i >= len(r.results) {
		return RunResult{ExitCode: 0}, nil
	}
	res := r.results[r.i]
	r.i++
	return res, nil
}

func newTestExecutor(runner Runner) (*Executor, *[]time.Duration) {
	e := NewExecutor(runner, config.DefaultTransientPatterns())
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }
	e.jitter = func() time.Duration { return 0 }
	return e, &slept
}

func TestExecuteTerraformPlanExitTwoIsSuccess(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{{ExitCode: 2, Stdout: "Plan: 1 to add\n"}}}
	e, slept := newTestExecutor(runner)

	res := e.Execute(context.Background(), LookupProfile("terraform-plan"), "terraform plan")
	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", res.Status)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
	if res.RetryAttempts != 0 {
		t.Errorf("retries = %d, want 0", res.RetryAttempts)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v on success", *slept)
	}
	if len(res.OutputLines) != 1 {
		t.Errorf("output lines = %v", res.OutputLines)
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{
		{ExitCode: 1, Stderr: "error: 429 Too Many Requests"},
		{ExitCode: 1, Stderr: "dial tcp: connection refused"},
		{ExitCode: 0, Stdout: "pushed\n"},
	}}
	e, slept := newTestExecutor(runner)

	res := e.Execute(context.Background(), LookupProfile("docker-push"), "docker push registry/app:v1")
	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", res.Status)
	}
	if res.RetryAttempts != 2 {
		t.Errorf("retries = %d, want 2", res.RetryAttempts)
	}
	// Exponential backoff: 2^0 then 2^1 seconds.
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
}

func TestExecuteHardFailureDoesNotRetry(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{
		{ExitCode: 1, Stderr: "Error: invalid resource address"},
	}}
	e, slept := newTestExecutor(runner)

	res := e.Execute(context.Background(), LookupProfile("terraform-plan"), "terraform plan")
	if res.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", res.Status)
	}
	if res.RetryAttempts != 0 || len(*slept) != 0 {
		t.Errorf("hard failure retried: %d attempts, slept %v", res.RetryAttempts, *slept)
	}
}

func TestExecuteRetryExceeded(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{
		{ExitCode: 1, Stderr: "rate limit exceeded"},
		{ExitCode: 1, Stderr: "rate limit exceeded"},
		{ExitCode: 1, Stderr: "rate limit exceeded"},
		{ExitCode: 1, Stderr: "rate limit exceeded"},
	}}
	e, _ := newTestExecutor(runner)

	res := e.Execute(context.Background(), LookupProfile("docker-push"), "docker push registry/app:v1")
	if res.Status != StatusRetryExceeded {
		t.Errorf("status = %s, want RETRY_EXCEEDED", res.Status)
	}
	if res.RetryAttempts != 3 {
		t.Errorf("retries = %d, want 3", res.RetryAttempts)
	}
}

func TestExecuteTimeout(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{
		{TimedOut: true, ExitCode: -1},
		{TimedOut: true, ExitCode: -1},
	}}
	e, slept := newTestExecutor(runner)

	profile := Profile{Name: "slow", TimeoutSeconds: 1, MaxRetries: 1, RetryBackoff: BackoffLinear}
	res := e.Execute(context.Background(), profile, "kubectl wait --for=condition=ready pod/x")
	if res.Status != StatusTimeout {
		t.Errorf("status = %s, want TIMEOUT", res.Status)
	}
	if res.RetryAttempts != 1 || len(*slept) != 1 {
		t.Errorf("timeout retry = %d, slept %v", res.RetryAttempts, *slept)
	}
	// Linear backoff: attempt+1 seconds.
	if (*slept)[0] != 1*time.Second {
		t.Errorf("backoff = %v, want 1s", (*slept)[0])
	}
}

func TestExecuteAppendsProfileFlags(t *testing.T) {
	runner := &scriptedRunner{results: []RunResult{{ExitCode: 0}}}
	e, _ := newTestExecutor(runner)

	e.Execute(context.Background(), LookupProfile("terraform-plan"), "terraform plan")
	if got := runner.commands[0]; got != "terraform plan -detailed-exitcode -no-color" {
		t.Errorf("command = %q", got)
	}
}

func TestBackoffStrategies(t *testing.T) {
	if d := BackoffExponential.Backoff(3); d != 8*time.Second {
		t.Errorf("exponential(3) = %v, want 8s", d)
	}
	if d := BackoffLinear.Backoff(3); d != 4*time.Second {
		t.Errorf("linear(3) = %v, want 4s", d)
	}
}
