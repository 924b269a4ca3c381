// Package pending implements the pending-update store: deduplicated,
// status-tracked suggestions to mutate the project context document. Agents
// submit discoveries; a human approves or rejects them; approved updates are
// merged into the context with a backup and archived.
package pending

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status tracks an update through its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusApplied  Status = "applied"
)

// Valid reports whether the status is a member of the enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusApplied:
		return true
	}
	return false
}

// Category classifies what kind of discovery an update records.
type Category string

const (
	CategoryNewResource          Category = "new_resource"
	CategoryConfigurationIssue   Category = "configuration_issue"
	CategoryDriftDetected        Category = "drift_detected"
	CategoryDependencyDiscovered Category = "dependency_discovered"
	CategoryTopologyChange       Category = "topology_change"
)

// allowedSections restricts each category to the context sections it may
// target.
var allowedSections = map[Category][]string{
	CategoryNewResource:          {"application_services", "cluster_details", "infrastructure_topology"},
	CategoryConfigurationIssue:   {"project_details", "terraform_infrastructure", "gitops_configuration", "application_services"},
	CategoryDriftDetected:        {"application_services", "cluster_details", "gitops_configuration", "terraform_infrastructure"},
	CategoryDependencyDiscovered: {"application_services", "infrastructure_topology"},
	CategoryTopologyChange:       {"infrastructure_topology", "cluster_details"},
}

// Valid reports whether the category is a member of the enum.
func (c Category) Valid() bool {
	_, ok := allowedSections[c]
	return ok
}

// Allows reports whether the category may target the given section.
func (c Category) Allows(section string) bool {
	for _, s := range allowedSections[c] {
		if s == section {
			return true
		}
	}
	return false
}

// MinConfidence is the floor below which discoveries are rejected.
const MinConfidence = 0.7

// Discovery is one agent-submitted context-mutation candidate.
type Discovery struct {
	Agent          string         `json:"agent"`
	Category       Category       `json:"category"`
	TargetSection  string         `json:"target_section"`
	ProposedChange map[string]any `json:"proposed_change"`
	Summary        string         `json:"summary"`
	Confidence     float64        `json:"confidence"`
}

// Update is the stored record of a discovery.
type Update struct {
	UpdateID       string         `json:"update_id"`
	ContentHash    string         `json:"content_hash"`
	Category       Category       `json:"category"`
	TargetSection  string         `json:"target_section"`
	ProposedChange map[string]any `json:"proposed_change"`
	Summary        string         `json:"summary"`
	Confidence     float64        `json:"confidence"`
	Status         Status         `json:"status"`
	SeenCount      int            `json:"seen_count"`
	SeenByAgents   []string       `json:"seen_by_agents"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Extra preserves unknown fields for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`
}

// Store errors.
var (
	ErrNotFound          = errors.New("pending update not found")
	ErrLowConfidence     = errors.New("confidence below threshold")
	ErrInvalidCategory   = errors.New("invalid update category")
	ErrSectionNotAllowed = errors.New("target section not allowed for category")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// hashLen is the hex prefix length of the content hash.
const hashLen = 12

// ContentHash computes the deduplication key over the target section and the
// proposed change, with map keys in canonical order.
func ContentHash(section string, change map[string]any) string {
	payload, _ := json.Marshal(struct {
		Section string         `json:"section"`
		Change  map[string]any `json:"change"`
	}{Section: section, Change: change})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:hashLen]
}

// NewUpdateID generates an identifier of the form
// pu_<yyyymmdd_hhmmss>_<4 hex>.
func NewUpdateID(at time.Time, hex4 string) string {
	return fmt.Sprintf("pu_%s_%s", at.UTC().Format("20060102_150405"), hex4)
}

// canTransition enforces status monotonicity: pending fans out to approved
// or rejected; only approved reaches applied.
func canTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusApplied
	}
	return false
}
