package workflow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gaiaops/gaia/internal/agentexec"
	"github.com/gaiaops/gaia/internal/memory"
)

// AgentResponse is the structured return contract a sub-agent may emit.
type AgentResponse struct {
	Version      string              `json:"version"`
	Metadata     ResponseMetadata    `json:"metadata"`
	Findings     []agentexec.Finding `json:"findings,omitempty"`
	HumanSummary string              `json:"human_summary,omitempty"`
	Actions      []string            `json:"actions,omitempty"`
	NextSteps    []string            `json:"next_steps,omitempty"`
	Artifacts    []string            `json:"artifacts,omitempty"`
}

// ResponseMetadata carries the agent's own success verdict.
type ResponseMetadata struct {
	Success *bool  `json:"success"`
	Agent   string `json:"agent,omitempty"`
}

var planStatusRe = regexp.MustCompile(`(?m)^\s*PLAN_STATUS:\s*([A-Z_]+)\s*$`)

// ParseAgentOutput interprets a sub-agent's raw output. Structured JSON
// responses are preferred; free-text output falls back to the last
// AGENT_STATUS block. Output carrying neither yields an unknown outcome.
func ParseAgentOutput(raw string) (memory.Outcome, *AgentResponse) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var resp AgentResponse
		if err := json.Unmarshal([]byte(trimmed), &resp); err == nil && resp.Version != "" {
			switch {
			case resp.Metadata.Success == nil:
				return memory.OutcomeUnknown, &resp
			case *resp.Metadata.Success:
				return memory.OutcomeSuccess, &resp
			default:
				return memory.OutcomeFailed, &resp
			}
		}
	}

	matches := planStatusRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return memory.OutcomeUnknown, nil
	}
	switch matches[len(matches)-1][1] {
	case "COMPLETE":
		return memory.OutcomeSuccess, nil
	case "BLOCKED", "ERROR":
		return memory.OutcomeFailed, nil
	default:
		return memory.OutcomePartial, nil
	}
}
