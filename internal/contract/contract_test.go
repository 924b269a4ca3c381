package contract

import (
	"errors"
	"testing"
)

func fullContext() map[string]any {
	return map[string]any{
		"sections": map[string]any{
			"project_details":          map[string]any{"name": "gaia-demo"},
			"terraform_infrastructure": map[string]any{"backend": "gcs"},
			"operational_guidelines":   map[string]any{"change_window": "weekdays"},
			"gitops_configuration":     map[string]any{"tool": "flux"},
			"application_services": []any{
				map[string]any{"name": "tcm-api"},
				map[string]any{"name": "bot"},
			},
			"cluster_details": map[string]any{"name": "prod-gke"},
		},
	}
}

func TestBuildIncludesContractSections(t *testing.T) {
	p, err := Build("terraform-planner", "plan the network change", nil, fullContext())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, want := range []string{"project_details", "terraform_infrastructure", "operational_guidelines"} {
		if _, ok := p.Contract[want]; !ok {
			t.Errorf("contract missing %s", want)
		}
	}
	if p.Metadata.AgentType != "terraform-planner" {
		t.Errorf("agent_type = %q", p.Metadata.AgentType)
	}
	if p.Metadata.Timestamp.IsZero() {
		t.Error("metadata timestamp unset")
	}
}

func TestBuildFailsOnMissingSection(t *testing.T) {
	doc := fullContext()
	delete(doc["sections"].(map[string]any), "terraform_infrastructure")

	_, err := Build("terraform-planner", "plan it", nil, doc)
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("Build() error = %v, want ErrMissingSection", err)
	}
}

func TestBuildEnrichesSimilarSections(t *testing.T) {
	p, err := Build("terraform-planner", "plan the tcm-api cluster move", nil, fullContext())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Enrichment["application_services"]; !ok {
		t.Error("task naming tcm-api should enrich application_services")
	}
	if _, ok := p.Enrichment["cluster_details"]; !ok {
		t.Error("task mentioning cluster should enrich cluster_details")
	}
	// Contract sections never appear twice.
	if _, ok := p.Enrichment["project_details"]; ok {
		t.Error("contract section duplicated into enrichment")
	}
}

func TestBuildUnknownAgentUsesDefaultContract(t *testing.T) {
	p, err := Build("mystery-agent", "do something", nil, fullContext())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := p.Contract["project_details"]; !ok {
		t.Error("default contract missing project_details")
	}
	if len(p.Contract) != 2 {
		t.Errorf("default contract = %v", p.Contract)
	}
}

func TestRequiredSectionsMergesExtras(t *testing.T) {
	got := RequiredSections("gitops-operator", []string{"gitops_configuration", "cluster_details"})
	want := map[string]bool{
		"project_details": true, "gitops_configuration": true,
		"operational_guidelines": true, "cluster_details": true,
	}
	if len(got) != len(want) {
		t.Fatalf("sections = %v", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected section %s", s)
		}
	}
}
