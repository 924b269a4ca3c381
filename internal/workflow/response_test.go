package workflow

import (
	"testing"

	"github.com/gaiaops/gaia/internal/memory"
)

func TestParseAgentOutputStructured(t *testing.T) {
	outcome, resp := ParseAgentOutput(`{
		"version": "1.0",
		"metadata": {"success": true, "agent": "gitops-operator"},
		"human_summary": "reconciled"
	}`)
	if outcome != memory.OutcomeSuccess {
		t.Errorf("outcome = %s, want success", outcome)
	}
	if resp == nil || resp.HumanSummary != "reconciled" {
		t.Errorf("response = %+v", resp)
	}

	outcome, _ = ParseAgentOutput(`{"version": "1.0", "metadata": {"success": false}}`)
	if outcome != memory.OutcomeFailed {
		t.Errorf("outcome = %s, want failed", outcome)
	}
}

func TestParseAgentOutputLegacyStatus(t *testing.T) {
	tests := []struct {
		status string
		want   memory.Outcome
	}{
		{"COMPLETE", memory.OutcomeSuccess},
		{"BLOCKED", memory.OutcomeFailed},
		{"ERROR", memory.OutcomeFailed},
		{"INVESTIGATING", memory.OutcomePartial},
		{"PLANNING", memory.OutcomePartial},
		{"NEEDS_INPUT", memory.OutcomePartial},
	}
	for _, tt := range tests {
		raw := "some preamble\nAGENT_STATUS\nPLAN_STATUS: " + tt.status + "\n"
		outcome, resp := ParseAgentOutput(raw)
		if outcome != tt.want {
			t.Errorf("PLAN_STATUS %s: outcome = %s, want %s", tt.status, outcome, tt.want)
		}
		if resp != nil {
			t.Errorf("PLAN_STATUS %s: unexpected structured response", tt.status)
		}
	}
}

func TestParseAgentOutputLastBlockWins(t *testing.T) {
	raw := "PLAN_STATUS: INVESTIGATING\nmore work\nPLAN_STATUS: COMPLETE\n"
	if outcome, _ := ParseAgentOutput(raw); outcome != memory.OutcomeSuccess {
		t.Errorf("outcome = %s, want success from last block", outcome)
	}
}

func TestParseAgentOutputUnparseable(t *testing.T) {
	for _, raw := range []string{"", "free text with no status", "{not json"} {
		if outcome, _ := ParseAgentOutput(raw); outcome != memory.OutcomeUnknown {
			t.Errorf("ParseAgentOutput(%q) = %s, want unknown", raw, outcome)
		}
	}
}
