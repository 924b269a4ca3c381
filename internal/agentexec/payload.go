// Package agentexec is the per-agent runtime: payload validation, local
// discovery, finding classification, remote validation, and execution with
// retry profiles. Each layer feeds the next and any validation failure halts
// the pipeline with a precise phase code.
package agentexec

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Validation phase codes.
const (
	PhasePayloadShape   = "A1"
	PhaseContractFields = "A2"
	PhaseInfraPaths     = "A3"
	PhaseEnrichment     = "A4"
	PhaseMetadata       = "A5"
)

// ValidationResult reports how far payload validation got.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	PhaseReached  string   `json:"phase_reached"`
	ValidFields   []string `json:"valid_fields"`
	MissingFields []string `json:"missing_fields"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
}

func (r *ValidationResult) fail(phase, format string, args ...any) *ValidationResult {
	r.PhaseReached = phase
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	return r
}

// ValidatePayload runs the Layer A checks against a raw payload. The
// contract field list comes from the dispatching agent's contract.
func ValidatePayload(payload any, contractFields []string) *ValidationResult {
	result := &ValidationResult{}

	// A1: the payload must be a map at all.
	body, ok := payload.(map[string]any)
	if !ok {
		return result.fail(PhasePayloadShape, "payload is %T, not a map", payload)
	}
	result.PhaseReached = PhasePayloadShape

	// A2: every contract field present and non-null.
	contract, _ := body["contract"].(map[string]any)
	for _, field := range contractFields {
		val, ok := contract[field]
		if !ok || val == nil {
			result.MissingFields = append(result.MissingFields, field)
			continue
		}
		result.ValidFields = append(result.ValidFields, field)
	}
	if len(result.MissingFields) > 0 {
		return result.fail(PhaseContractFields, "contract fields missing or null: %v", result.MissingFields)
	}
	result.PhaseReached = PhaseContractFields

	// A3: infrastructure paths must exist, or at least their parent must.
	for _, path := range infrastructurePaths(contract) {
		if !pathPlausible(path) {
			return result.fail(PhaseInfraPaths, "infrastructure path does not exist: %s", path)
		}
	}
	result.PhaseReached = PhaseInfraPaths

	// A4: enrichment is best-effort, but present fields must be non-null.
	if enrichment, ok := body["enrichment"]; ok {
		em, isMap := enrichment.(map[string]any)
		if !isMap {
			return result.fail(PhaseEnrichment, "enrichment is %T, not a map", enrichment)
		}
		for k, v := range em {
			if v == nil {
				return result.fail(PhaseEnrichment, "enrichment field %s is null", k)
			}
		}
	} else {
		result.Warnings = append(result.Warnings, "payload has no enrichment")
	}
	result.PhaseReached = PhaseEnrichment

	// A5: metadata coherence.
	metadata, ok := body["metadata"].(map[string]any)
	if !ok {
		return result.fail(PhaseMetadata, "metadata missing or not a map")
	}
	if agentType, _ := metadata["agent_type"].(string); agentType == "" {
		return result.fail(PhaseMetadata, "metadata.agent_type missing")
	}
	if ts, ok := metadata["timestamp"].(string); ok {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return result.fail(PhaseMetadata, "metadata.timestamp not RFC3339: %q", ts)
		}
	}
	result.PhaseReached = PhaseMetadata
	result.IsValid = true
	return result
}

// infrastructurePaths collects path-like values from the contract.
func infrastructurePaths(contract map[string]any) []string {
	raw, ok := contract["infrastructure_paths"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// pathPlausible accepts existing paths and paths whose parent directory
// exists, so not-yet-created workspaces validate.
func pathPlausible(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Dir(path)); err == nil {
		return true
	}
	return false
}
