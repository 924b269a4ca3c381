package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/audit"
	"github.com/gaiaops/gaia/internal/security"
)

// PreInput is what the host pipes into the pre-hook.
type PreInput struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// PostInput is what the host pipes into the post-hook.
type PostInput struct {
	Tool                string         `json:"tool"`
	Parameters          map[string]any `json:"parameters"`
	Result              string         `json:"result"`
	Duration            float64        `json:"duration"`
	ExitCode            int            `json:"exit_code"`
	HookEventName       string         `json:"hook_event_name"`
	AgentTranscriptPath string         `json:"agent_transcript_path,omitempty"`
}

// permissionOutput is the decision JSON the host runtime understands.
type permissionOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// Runner wires the hooks to the policy engine and the audit sink.
type Runner struct {
	Policy    *security.Engine
	Audit     *audit.Sink
	States    *StateFile
	SessionID string
	Log       *zap.Logger

	// RevokeApproval is called by the post-hook to burn any live approval
	// file regardless of outcome. Optional.
	RevokeApproval func() error
}

// Pre gates one tool invocation. It reads the host's JSON from in and, when
// the decision is ask or deny, writes the permission JSON to out; an allow
// writes nothing. Internal failures log and allow-by-silence is never used
// for T3: unparseable input asks.
func (r *Runner) Pre(in io.Reader, out io.Writer) error {
	var input PreInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		r.log().Warn("pre-hook input unparseable", zap.Error(err))
		return writeDecision(out, security.DecisionAsk, "hook could not parse the tool invocation")
	}

	command := commandFrom(input.Parameters)
	eval := r.Policy.Evaluate(input.Tool, command, agentFrom(input.Parameters))

	state := &State{
		Tool:        input.Tool,
		Command:     command,
		Tier:        eval.Tier,
		StartedAt:   time.Now().UTC(),
		SessionID:   r.SessionID,
		PreDecision: eval.Decision,
		Metadata:    map[string]any{"reason": eval.Reason},
	}
	if err := r.States.Save(state); err != nil {
		r.log().Warn("hook state save failed", zap.Error(err))
	}

	if eval.Decision == security.DecisionAllow {
		return nil
	}
	reason := eval.Reason
	if len(eval.Suggestions) > 0 {
		reason = fmt.Sprintf("%s (try: %s)", reason, strings.Join(eval.Suggestions, "; "))
	}
	return writeDecision(out, eval.Decision, reason)
}

// Post closes the loop for one invocation: consume the handoff state, audit
// the execution, and burn any live approval. All failures log and continue.
func (r *Runner) Post(in io.Reader) error {
	var input PostInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		r.log().Warn("post-hook input unparseable", zap.Error(err))
		return nil
	}

	state, err := r.States.Consume()
	if err != nil {
		r.log().Warn("no hook state for post-hook", zap.Error(err))
		state = &State{
			Tool:      input.Tool,
			Command:   commandFrom(input.Parameters),
			Tier:      security.TierT3,
			StartedAt: time.Now().UTC(),
			SessionID: r.SessionID,
		}
	}

	if r.Audit != nil {
		r.Audit.RecordExecution(
			state.Tool,
			state.Command,
			input.Parameters,
			state.Tier,
			time.Since(state.StartedAt),
			input.ExitCode,
			input.Result,
		)
	}

	if r.RevokeApproval != nil {
		if err := r.RevokeApproval(); err != nil {
			r.log().Warn("approval revoke failed", zap.Error(err))
		}
	}
	return nil
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func writeDecision(out io.Writer, decision security.Decision, reason string) error {
	return json.NewEncoder(out).Encode(permissionOutput{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       string(decision),
			PermissionDecisionReason: reason,
		},
	})
}

// commandFrom pulls the shell command out of tool parameters.
func commandFrom(params map[string]any) string {
	for _, key := range []string{"command", "cmd"} {
		if s, ok := params[key].(string); ok {
			return s
		}
	}
	return ""
}

// agentFrom pulls the dispatching sub-agent name, when present.
func agentFrom(params map[string]any) string {
	if s, ok := params["subagent_type"].(string); ok {
		return s
	}
	return ""
}
