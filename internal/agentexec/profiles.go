package agentexec

import "time"

// BackoffStrategy selects the retry delay curve.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
)

// Backoff returns the base delay for the given attempt, before jitter.
func (b BackoffStrategy) Backoff(attempt int) time.Duration {
	switch b {
	case BackoffLinear:
		return time.Duration(attempt+1) * time.Second
	default:
		return time.Duration(1<<uint(attempt)) * time.Second
	}
}

// Profile tunes how one class of command executes.
type Profile struct {
	Name               string          `json:"name"`
	TimeoutSeconds     int             `json:"timeout_seconds"`
	MaxRetries         int             `json:"max_retries"`
	RetryBackoff       BackoffStrategy `json:"retry_backoff_strategy"`
	HealthCheckCommand string          `json:"health_check_command,omitempty"`
	FallbackCommands   []string        `json:"fallback_commands,omitempty"`
	Flags              []string        `json:"flags,omitempty"`
	ParseJSONOutput    bool            `json:"parse_json_output"`
	// SuccessExitCodes lists exit codes beyond 0 that count as success.
	// terraform plan -detailed-exitcode returns 2 when a diff exists.
	SuccessExitCodes []int `json:"success_exit_codes,omitempty"`
}

// Timeout returns the profile timeout as a duration.
func (p Profile) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// successful reports whether the exit code counts as success under this
// profile.
func (p Profile) successful(exitCode int) bool {
	if exitCode == 0 {
		return true
	}
	for _, c := range p.SuccessExitCodes {
		if c == exitCode {
			return true
		}
	}
	return false
}

// standardProfiles covers the commands Layer E dispatches.
var standardProfiles = map[string]Profile{
	"terraform-validate": {
		Name:           "terraform-validate",
		TimeoutSeconds: 60,
		MaxRetries:     1,
		RetryBackoff:   BackoffLinear,
	},
	"terraform-plan": {
		Name:             "terraform-plan",
		TimeoutSeconds:   300,
		MaxRetries:       2,
		RetryBackoff:     BackoffExponential,
		Flags:            []string{"-detailed-exitcode", "-no-color"},
		SuccessExitCodes: []int{2},
	},
	"terraform-apply": {
		Name:           "terraform-apply",
		TimeoutSeconds: 600,
		MaxRetries:     0,
		RetryBackoff:   BackoffExponential,
		Flags:          []string{"-auto-approve", "-no-color"},
	},
	"flux-check": {
		Name:           "flux-check",
		TimeoutSeconds: 60,
		MaxRetries:     2,
		RetryBackoff:   BackoffLinear,
	},
	"flux-reconcile": {
		Name:               "flux-reconcile",
		TimeoutSeconds:     180,
		MaxRetries:         2,
		RetryBackoff:       BackoffExponential,
		HealthCheckCommand: "flux check",
	},
	"helm-upgrade": {
		Name:             "helm-upgrade",
		TimeoutSeconds:   300,
		MaxRetries:       1,
		RetryBackoff:     BackoffExponential,
		Flags:            []string{"--atomic", "--timeout", "5m"},
		FallbackCommands: []string{"helm rollback"},
	},
	"kubectl-wait": {
		Name:           "kubectl-wait",
		TimeoutSeconds: 300,
		MaxRetries:     3,
		RetryBackoff:   BackoffLinear,
	},
	"docker-build": {
		Name:           "docker-build",
		TimeoutSeconds: 600,
		MaxRetries:     1,
		RetryBackoff:   BackoffLinear,
	},
	"docker-push": {
		Name:            "docker-push",
		TimeoutSeconds:  300,
		MaxRetries:      3,
		RetryBackoff:    BackoffExponential,
		ParseJSONOutput: false,
	},
}

// LookupProfile returns a named profile. Unknown names get a conservative
// default with no retries.
func LookupProfile(name string) Profile {
	if p, ok := standardProfiles[name]; ok {
		return p
	}
	return Profile{Name: name, TimeoutSeconds: 120, MaxRetries: 0, RetryBackoff: BackoffExponential}
}

// ProfileNames lists the standard profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(standardProfiles))
	for name := range standardProfiles {
		names = append(names, name)
	}
	return names
}
