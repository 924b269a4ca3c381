package hooks

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaiaops/gaia/internal/audit"
	"github.com/gaiaops/gaia/internal/config"
	"github.com/gaiaops/gaia/internal/security"
)

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	classifier := security.NewClassifier(config.NewLoader(filepath.Join(dir, "config")))
	sink := audit.NewSink(filepath.Join(dir, "logs"), filepath.Join(dir, "metrics"), "session-test", nil)
	engine := security.NewEngine(classifier, security.NewSettings(nil, nil, nil), sink)
	r := &Runner{
		Policy:    engine,
		Audit:     sink,
		States:    NewStateFile(filepath.Join(dir, ".hooks_state.json")),
		SessionID: "session-test",
	}
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "metrics"), 0o755); err != nil {
		t.Fatal(err)
	}
	return r, dir
}

func preJSON(command string) *bytes.Buffer {
	raw, _ := json.Marshal(PreInput{
		Tool:       "Bash",
		Parameters: map[string]any{"command": command},
	})
	return bytes.NewBuffer(raw)
}

func TestPreAllowWritesNothing(t *testing.T) {
	r, _ := newTestRunner(t)
	var out bytes.Buffer

	if err := r.Pre(preJSON("kubectl get pods"), &out); err != nil {
		t.Fatalf("Pre() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("allow produced output: %s", out.String())
	}

	state, err := r.States.Consume()
	if err != nil {
		t.Fatalf("state not saved: %v", err)
	}
	if state.PreDecision != security.DecisionAllow || state.Tier != security.TierT0 {
		t.Errorf("state = %+v", state)
	}
}

func TestPreDenyEmitsPermissionJSON(t *testing.T) {
	r, _ := newTestRunner(t)
	var out bytes.Buffer

	if err := r.Pre(preJSON("terraform destroy -auto-approve"), &out); err != nil {
		t.Fatalf("Pre() error = %v", err)
	}

	var decision permissionOutput
	if err := json.Unmarshal(out.Bytes(), &decision); err != nil {
		t.Fatalf("output not permission JSON: %v", err)
	}
	h := decision.HookSpecificOutput
	if h.HookEventName != "PreToolUse" {
		t.Errorf("event = %q", h.HookEventName)
	}
	if h.PermissionDecision != "deny" {
		t.Errorf("decision = %q, want deny", h.PermissionDecision)
	}
	if !strings.Contains(h.PermissionDecisionReason, "terraform plan") {
		t.Errorf("reason lacks suggestion: %q", h.PermissionDecisionReason)
	}
}

func TestPreT3Asks(t *testing.T) {
	r, _ := newTestRunner(t)
	var out bytes.Buffer

	if err := r.Pre(preJSON("kubectl apply -f deploy.yaml"), &out); err != nil {
		t.Fatal(err)
	}
	var decision permissionOutput
	if err := json.Unmarshal(out.Bytes(), &decision); err != nil {
		t.Fatal(err)
	}
	if decision.HookSpecificOutput.PermissionDecision != "ask" {
		t.Errorf("decision = %q, want ask", decision.HookSpecificOutput.PermissionDecision)
	}
}

func TestPreBadInputAsks(t *testing.T) {
	r, _ := newTestRunner(t)
	var out bytes.Buffer
	if err := r.Pre(strings.NewReader("{not json"), &out); err != nil {
		t.Fatalf("Pre() error = %v", err)
	}
	var decision permissionOutput
	if err := json.Unmarshal(out.Bytes(), &decision); err != nil {
		t.Fatal(err)
	}
	if decision.HookSpecificOutput.PermissionDecision != "ask" {
		t.Errorf("decision = %q, want ask", decision.HookSpecificOutput.PermissionDecision)
	}
}

func TestPostConsumesStateAndAudits(t *testing.T) {
	r, dir := newTestRunner(t)
	var out bytes.Buffer
	if err := r.Pre(preJSON("kubectl get pods"), &out); err != nil {
		t.Fatal(err)
	}

	revoked := false
	r.RevokeApproval = func() error { revoked = true; return nil }

	post, _ := json.Marshal(PostInput{
		Tool:          "Bash",
		Parameters:    map[string]any{"command": "kubectl get pods"},
		Result:        "NAME READY STATUS",
		ExitCode:      0,
		HookEventName: "PostToolUse",
	})
	if err := r.Post(bytes.NewBuffer(post)); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if !revoked {
		t.Error("post-hook did not revoke the approval")
	}
	if _, err := r.States.Consume(); err == nil {
		t.Error("hook state survived the post-hook")
	}

	session, err := os.ReadFile(filepath.Join(dir, "logs", "session-session-test.jsonl"))
	if err != nil {
		t.Fatalf("session journal missing: %v", err)
	}
	if !strings.Contains(string(session), "kubectl get pods") {
		t.Errorf("journal = %s", session)
	}
}

func TestPostWithoutStateStillSucceeds(t *testing.T) {
	r, _ := newTestRunner(t)
	post, _ := json.Marshal(PostInput{Tool: "Bash", Parameters: map[string]any{"command": "ls"}})
	if err := r.Post(bytes.NewBuffer(post)); err != nil {
		t.Errorf("Post() without state error = %v", err)
	}
}

func TestSessionIDGenerated(t *testing.T) {
	t.Setenv(SessionEnv, "")
	id := SessionID()
	if !strings.HasPrefix(id, "session-") {
		t.Errorf("generated id = %q", id)
	}
	t.Setenv(SessionEnv, "session-custom")
	if got := SessionID(); got != "session-custom" {
		t.Errorf("env id = %q", got)
	}
}
