package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gaiaops/gaia/internal/security"
)

func TestLoadAgentsMissingFileUsesDefaults(t *testing.T) {
	agents, err := LoadAgents(t.TempDir())
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if len(agents) != len(DefaultAgents()) {
		t.Fatalf("got %d agents, want %d", len(agents), len(DefaultAgents()))
	}
}

func TestLoadAgentsReadsRoster(t *testing.T) {
	dir := t.TempDir()
	roster := `agents:
  - name: db-migrator
    description: Runs schema migrations
    domains: [migration, schema, database]
    security_tiers_supported: [3]
`
	if err := os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(roster), 0o644); err != nil {
		t.Fatal(err)
	}

	agents, err := LoadAgents(dir)
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %d agents, want 1", len(agents))
	}
	if agents[0].Name != "db-migrator" {
		t.Errorf("name = %q", agents[0].Name)
	}
	if !agents[0].SupportsTier(security.TierT3) {
		t.Error("expected T3 support from roster entry")
	}
}

func TestLoadAgentsRejectsBadYaml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte("agents: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAgents(dir); err == nil {
		t.Fatal("expected error for unparseable roster")
	}
}
