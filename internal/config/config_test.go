package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Workflow.SessionResumeMins != 30 {
		t.Errorf("SessionResumeMins = %d, want 30", cfg.Workflow.SessionResumeMins)
	}
	if cfg.Workflow.MaxSessionErrors != 3 {
		t.Errorf("MaxSessionErrors = %d, want 3", cfg.Workflow.MaxSessionErrors)
	}
	if cfg.Execution.DiscoveryDepth != 3 {
		t.Errorf("DiscoveryDepth = %d, want 3", cfg.Execution.DiscoveryDepth)
	}
	if cfg.Thresholds.Clarification != 30 {
		t.Errorf("Clarification = %d, want 30", cfg.Thresholds.Clarification)
	}
	if cfg.Thresholds.RoutingConfidence != 0.5 {
		t.Errorf("RoutingConfidence = %v, want 0.5", cfg.Thresholds.RoutingConfidence)
	}
	if len(cfg.Execution.TransientPatterns) == 0 {
		t.Error("TransientPatterns should have defaults")
	}
	if len(cfg.Memory.StopWords) == 0 {
		t.Error("StopWords should have defaults")
	}
}

func TestApplyDefaults_PreservesExisting(t *testing.T) {
	cfg := &Config{
		Workflow:   WorkflowConfig{SessionResumeMins: 10},
		Thresholds: ThresholdsConfig{Clarification: 45},
	}
	applyDefaults(cfg)

	if cfg.Workflow.SessionResumeMins != 10 {
		t.Errorf("SessionResumeMins = %d, want 10", cfg.Workflow.SessionResumeMins)
	}
	if cfg.Thresholds.Clarification != 45 {
		t.Errorf("Clarification = %d, want 45", cfg.Thresholds.Clarification)
	}
}

func TestApprovalTTL(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if got := cfg.ApprovalTTL(); got != 15*time.Minute {
		t.Errorf("ApprovalTTL = %v, want 15m", got)
	}

	cfg.Workflow.ApprovalTTL = "garbage"
	if got := cfg.ApprovalTTL(); got != 15*time.Minute {
		t.Errorf("ApprovalTTL fallback = %v, want 15m", got)
	}
}

func TestLoader_FallbackDefaults(t *testing.T) {
	l := NewLoader(t.TempDir())

	doc := l.Load("safe_commands")
	cmds := StringList(doc, "commands")
	if len(cmds) == 0 {
		t.Fatal("expected default safe commands")
	}
	found := false
	for _, c := range cmds {
		if c == "pwd" {
			found = true
		}
	}
	if !found {
		t.Error("default safe commands should include pwd")
	}
}

func TestLoader_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	content := "commands:\n  - foo\n  - bar\n"
	if err := os.WriteFile(filepath.Join(dir, "safe_commands.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(dir)
	doc := l.Load("safe_commands")
	cmds := StringList(doc, "commands")
	if len(cmds) != 2 || cmds[0] != "foo" || cmds[1] != "bar" {
		t.Errorf("commands = %v, want [foo bar]", cmds)
	}
}

func TestLoader_ParseErrorFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "security_tiers.yaml"), []byte("{{not yaml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(dir)
	doc := l.Load("security_tiers")
	verbs := StringList(doc, "t2_verbs")
	if len(verbs) != 3 {
		t.Errorf("t2_verbs = %v, want the 3 defaults", verbs)
	}
}

func TestLoader_CachesAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "safe_commands.yaml")
	if err := os.WriteFile(path, []byte("commands: [one]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(dir)
	if got := StringList(l.Load("safe_commands"), "commands"); len(got) != 1 {
		t.Fatalf("commands = %v, want [one]", got)
	}

	// Rewrite the file; the cached copy must still be served.
	if err := os.WriteFile(path, []byte("commands: [one, two]\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got := StringList(l.Load("safe_commands"), "commands"); len(got) != 1 {
		t.Errorf("cached commands = %v, want [one]", got)
	}

	l.Invalidate("safe_commands")
	if got := StringList(l.Load("safe_commands"), "commands"); len(got) != 2 {
		t.Errorf("reloaded commands = %v, want [one two]", got)
	}
}

func TestLoader_UnknownDocument(t *testing.T) {
	l := NewLoader(t.TempDir())
	doc := l.Load("no_such_document")
	if doc == nil {
		t.Fatal("unknown document should yield an empty map, not nil")
	}
	if len(doc) != 0 {
		t.Errorf("unknown document = %v, want empty", doc)
	}
}
