package agentexec

import (
	"context"
	"fmt"
	"time"

	"github.com/gaiaops/gaia/internal/security"
)

// Probe is one read-only live check derived from a high-tier finding.
type Probe struct {
	Command string `json:"command"`
	// FindingIndex points back into the classification result.
	FindingIndex int `json:"finding_index"`
}

// ProbeOutcome records what remote validation learned for one probe.
type ProbeOutcome struct {
	Probe     Probe             `json:"probe"`
	Decision  security.Decision `json:"decision"`
	Simulated bool              `json:"simulated"`
	ExitCode  int               `json:"exit_code,omitempty"`
	Output    string            `json:"output,omitempty"`
}

// RemoteResult is the Layer D output.
type RemoteResult struct {
	Escalated bool           `json:"escalated"`
	DryRun    bool           `json:"dry_run"`
	Outcomes  []ProbeOutcome `json:"outcomes"`
}

// probeTimeout bounds each live probe.
const probeTimeout = 30 * time.Second

// RemoteValidator runs Layer D: read-only probes dispatched through the
// policy engine, live only when dry-run is off.
type RemoteValidator struct {
	Policy *security.Engine
	Runner Runner
	Agent  string
	// DryRun simulates probes: the policy verdict is recorded without
	// executing anything. This is the default.
	DryRun bool
}

// Validate probes the live side of escalated findings and adjusts their
// origins in place. Findings whose local claim conflicts with the live reply
// become CONFLICTING; confirmed ones become DUAL_VERIFIED.
func (v *RemoteValidator) Validate(ctx context.Context, classification *ClassificationResult) (*RemoteResult, error) {
	result := &RemoteResult{DryRun: v.DryRun}
	if !classification.ShouldEscalateToLive {
		return result, nil
	}
	result.Escalated = true

	for i := range classification.Findings {
		f := &classification.Findings[i]
		if f.Tier != FindingCritical && f.Tier != FindingDeviation {
			continue
		}
		command := probeCommand(f)
		if command == "" {
			continue
		}
		probe := Probe{Command: command, FindingIndex: i}

		eval := v.Policy.Evaluate("Bash", command, v.Agent)
		outcome := ProbeOutcome{Probe: probe, Decision: eval.Decision, Simulated: true}

		if eval.Decision != security.DecisionAllow {
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		if v.DryRun {
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		run, err := v.Runner.Run(ctx, command, probeTimeout)
		if err != nil {
			return nil, fmt.Errorf("probe %q failed to start: %w", command, err)
		}
		outcome.Simulated = false
		outcome.ExitCode = run.ExitCode
		outcome.Output = run.Stdout
		result.Outcomes = append(result.Outcomes, outcome)

		adjustOrigin(f, run)
	}
	return result, nil
}

// probeCommand derives the read-only check for a finding, from its details
// or its kind.
func probeCommand(f *Finding) string {
	if f.Details != nil {
		if cmd, ok := f.Details["probe_command"].(string); ok {
			return cmd
		}
	}
	switch f.Title {
	case "helm_name_mismatch":
		return "helm list -A"
	case "namespace_mismatch":
		return "kubectl get namespaces"
	}
	return ""
}

// adjustOrigin reconciles the local claim with the live reply.
func adjustOrigin(f *Finding, run RunResult) {
	switch {
	case run.ExitCode != 0:
		// Live side unreachable or disagreeing with the local read.
		if f.Origin == OriginLocalOnly {
			f.Origin = OriginConflicting
		}
	default:
		if f.Origin == OriginLocalOnly {
			f.Origin = OriginDualVerified
		}
	}
}
