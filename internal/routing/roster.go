package routing

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gaiaops/gaia/internal/security"
)

// rosterFile is the optional per-project agent roster, relative to the
// config directory.
const rosterFile = "agents.yaml"

type rosterDoc struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadAgents reads the agent roster from <configDir>/agents.yaml. A missing
// file returns the compiled-in roster; a present but unparseable one is an
// error so a typo cannot silently collapse routing to the defaults.
func LoadAgents(configDir string) ([]AgentSpec, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, rosterFile))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultAgents(), nil
		}
		return nil, fmt.Errorf("failed to read agent roster: %w", err)
	}
	var doc rosterDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("agent roster unparseable: %w", err)
	}
	if len(doc.Agents) == 0 {
		return DefaultAgents(), nil
	}
	return doc.Agents, nil
}

// DefaultAgents is the built-in roster used when no agents.yaml exists.
func DefaultAgents() []AgentSpec {
	return []AgentSpec{
		{
			Name:        "cluster-investigator",
			Description: "Read-only investigation of cluster state, pods, and logs",
			Domains:     []string{"pods", "logs", "kubectl", "cluster", "investigate", "debug", "events", "nodes"},
			SecurityTiersSupported: []security.Tier{
				security.TierT0, security.TierT1, security.TierT2,
			},
		},
		{
			Name:        "gitops-operator",
			Description: "GitOps reconciliation through Flux and Kustomize",
			Domains:     []string{"flux", "gitops", "kustomize", "helmrelease", "reconcile", "suspend", "resume", "source"},
			SecurityTiersSupported: []security.Tier{
				security.TierT0, security.TierT1, security.TierT2, security.TierT3,
			},
		},
		{
			Name:        "terraform-planner",
			Description: "Terraform planning and module analysis, plan-only",
			Domains:     []string{"terraform", "plan", "infrastructure", "module", "state", "provider"},
			SecurityTiersSupported: []security.Tier{
				security.TierT0, security.TierT1, security.TierT2,
			},
		},
		{
			Name:        "app-deployer",
			Description: "Application rollout and release promotion",
			Domains:     []string{"deploy", "release", "rollout", "image", "promote", "version"},
			SecurityTiersSupported: []security.Tier{
				security.TierT0, security.TierT1, security.TierT2, security.TierT3,
			},
		},
	}
}
