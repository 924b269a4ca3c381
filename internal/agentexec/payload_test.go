package agentexec

import (
	"testing"
	"time"
)

func validPayload(t *testing.T) map[string]any {
	t.Helper()
	return map[string]any{
		"contract": map[string]any{
			"project_details":        map[string]any{"name": "gaia-demo"},
			"operational_guidelines": map[string]any{"change_window": "weekdays"},
			"infrastructure_paths":   []any{t.TempDir()},
		},
		"enrichment": map[string]any{
			"cluster_details": map[string]any{"name": "prod-gke"},
		},
		"metadata": map[string]any{
			"agent_type": "terraform-planner",
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
}

var contractFields = []string{"project_details", "operational_guidelines", "infrastructure_paths"}

func TestValidatePayloadAccepts(t *testing.T) {
	res := ValidatePayload(validPayload(t), contractFields)
	if !res.IsValid {
		t.Fatalf("valid payload rejected: %+v", res)
	}
	if res.PhaseReached != PhaseMetadata {
		t.Errorf("phase = %s, want %s", res.PhaseReached, PhaseMetadata)
	}
	if len(res.ValidFields) != 3 {
		t.Errorf("valid fields = %v", res.ValidFields)
	}
}

func TestValidatePayloadPhaseCodes(t *testing.T) {
	t.Run("A1 non-map", func(t *testing.T) {
		res := ValidatePayload("not a map", contractFields)
		if res.IsValid || res.PhaseReached != PhasePayloadShape {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("A2 missing field", func(t *testing.T) {
		p := validPayload(t)
		delete(p["contract"].(map[string]any), "project_details")
		res := ValidatePayload(p, contractFields)
		if res.IsValid || res.PhaseReached != PhaseContractFields {
			t.Errorf("result = %+v", res)
		}
		if len(res.MissingFields) != 1 || res.MissingFields[0] != "project_details" {
			t.Errorf("missing = %v", res.MissingFields)
		}
	})

	t.Run("A2 null field", func(t *testing.T) {
		p := validPayload(t)
		p["contract"].(map[string]any)["project_details"] = nil
		res := ValidatePayload(p, contractFields)
		if res.IsValid || res.PhaseReached != PhaseContractFields {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("A3 bad path", func(t *testing.T) {
		p := validPayload(t)
		p["contract"].(map[string]any)["infrastructure_paths"] = []any{"/definitely/not/a/real/dir/x"}
		res := ValidatePayload(p, contractFields)
		if res.IsValid || res.PhaseReached != PhaseInfraPaths {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("A4 null enrichment value", func(t *testing.T) {
		p := validPayload(t)
		p["enrichment"].(map[string]any)["cluster_details"] = nil
		res := ValidatePayload(p, contractFields)
		if res.IsValid || res.PhaseReached != PhaseEnrichment {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("A4 absent enrichment warns only", func(t *testing.T) {
		p := validPayload(t)
		delete(p, "enrichment")
		res := ValidatePayload(p, contractFields)
		if !res.IsValid {
			t.Errorf("absent enrichment rejected: %+v", res)
		}
		if len(res.Warnings) == 0 {
			t.Error("expected a warning for missing enrichment")
		}
	})

	t.Run("A5 missing agent type", func(t *testing.T) {
		p := validPayload(t)
		delete(p["metadata"].(map[string]any), "agent_type")
		res := ValidatePayload(p, contractFields)
		if res.IsValid || res.PhaseReached != PhaseMetadata {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("A5 bad timestamp", func(t *testing.T) {
		p := validPayload(t)
		p["metadata"].(map[string]any)["timestamp"] = "yesterday"
		res := ValidatePayload(p, contractFields)
		if res.IsValid {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestPathPlausibleAcceptsMissingLeafWithParent(t *testing.T) {
	dir := t.TempDir()
	if !pathPlausible(dir + "/workspace-to-be-created") {
		t.Error("path with existing parent rejected")
	}
}
