// Package contract builds the per-agent payload: the context sections an
// agent is contractually owed, plus enrichment sections similar to the task.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// contractMap declares the mandatory context sections per agent. A dispatch
// with any of these missing from the context document fails the context
// phase guard.
var contractMap = map[string][]string{
	"terraform-planner":    {"project_details", "terraform_infrastructure", "operational_guidelines"},
	"gitops-operator":      {"project_details", "gitops_configuration", "operational_guidelines"},
	"cluster-investigator": {"project_details", "cluster_details"},
	"app-deployer":         {"project_details", "application_services", "gitops_configuration"},
}

// defaultContract applies to agents without a declared entry.
var defaultContract = []string{"project_details", "operational_guidelines"}

// ErrMissingSection fails the build when the context document lacks a
// contract-required section.
var ErrMissingSection = errors.New("required context section missing")

// RequiredSections returns the contract for an agent, falling back to the
// default contract. Extra sections declared on the agent spec are appended.
func RequiredSections(agentName string, extra []string) []string {
	base, ok := contractMap[agentName]
	if !ok {
		base = defaultContract
	}
	out := make([]string, 0, len(base)+len(extra))
	seen := map[string]bool{}
	for _, s := range append(append([]string{}, base...), extra...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Payload is what a sub-agent receives.
type Payload struct {
	Contract   map[string]any `json:"contract"`
	Enrichment map[string]any `json:"enrichment,omitempty"`
	Metadata   Metadata       `json:"metadata"`
}

// Metadata describes the dispatch.
type Metadata struct {
	AgentType string    `json:"agent_type"`
	Timestamp time.Time `json:"timestamp"`
	Task      string    `json:"task,omitempty"`
}

var taskWords = regexp.MustCompile(`[a-z0-9-]+`)

// Build assembles the payload for one dispatch. Contract sections are
// mandatory; enrichment adds task-similar sections without ever dropping a
// required one.
func Build(agentName, userTask string, extraRequired []string, contextDoc map[string]any) (*Payload, error) {
	sections, _ := contextDoc["sections"].(map[string]any)

	required := RequiredSections(agentName, extraRequired)
	contract := make(map[string]any, len(required))
	for _, name := range required {
		val, ok := sections[name]
		if !ok || val == nil {
			return nil, fmt.Errorf("%w: %s for agent %s", ErrMissingSection, name, agentName)
		}
		contract[name] = val
	}

	enrichment := map[string]any{}
	words := map[string]bool{}
	for _, w := range taskWords.FindAllString(strings.ToLower(userTask), -1) {
		words[w] = true
	}
	for name, val := range sections {
		if _, taken := contract[name]; taken {
			continue
		}
		if sectionSimilar(name, val, words) {
			enrichment[name] = val
		}
	}
	if len(enrichment) == 0 {
		enrichment = nil
	}

	return &Payload{
		Contract:   contract,
		Enrichment: enrichment,
		Metadata: Metadata{
			AgentType: agentName,
			Timestamp: time.Now().UTC(),
			Task:      userTask,
		},
	}, nil
}

// sectionSimilar reports whether a non-contract section looks relevant to
// the task: its name tokens or its top-level entity names appear in the
// task.
func sectionSimilar(name string, val any, taskWords map[string]bool) bool {
	for _, tok := range strings.Split(name, "_") {
		if taskWords[tok] {
			return true
		}
	}
	entries, ok := val.([]any)
	if !ok {
		return false
	}
	for _, item := range entries {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if entity, ok := m["name"].(string); ok && taskWords[strings.ToLower(entity)] {
			return true
		}
	}
	return false
}
