// Package memory implements the episodic memory store: a content-addressed,
// append-only episode log with a mutable secondary index and relevance-scored
// retrieval. Episodes record the full lifecycle of one user request and are
// enriched progressively as the workflow advances.
package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of an episode.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeUnknown   Outcome = "unknown"
)

// Valid reports whether the outcome is a member of the enum.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailed, OutcomeAbandoned, OutcomeUnknown:
		return true
	}
	return false
}

// EpisodeType categorizes what kind of request an episode records.
type EpisodeType string

const (
	TypeDeployment      EpisodeType = "deployment"
	TypeTroubleshooting EpisodeType = "troubleshooting"
	TypeCreation        EpisodeType = "creation"
	TypeModification    EpisodeType = "modification"
	TypeValidation      EpisodeType = "validation"
	TypeDeletion        EpisodeType = "deletion"
	TypeGeneral         EpisodeType = "general"
)

// RelationKind labels a directed edge between two episodes.
type RelationKind string

const (
	RelSolves    RelationKind = "SOLVES"
	RelCauses    RelationKind = "CAUSES"
	RelDependsOn RelationKind = "DEPENDS_ON"
	RelRelatedTo RelationKind = "RELATED_TO"
	RelSupersedes RelationKind = "SUPERSEDES"
)

// Valid reports whether the kind is a member of the enum.
func (k RelationKind) Valid() bool {
	switch k {
	case RelSolves, RelCauses, RelDependsOn, RelRelatedTo, RelSupersedes:
		return true
	}
	return false
}

// Relationship is one labeled directed edge in the episode graph.
type Relationship struct {
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`
	Kind     RelationKind `json:"kind"`
}

// AgentRun records one sub-agent's participation in an episode.
type AgentRun struct {
	AgentID         string   `json:"agent_id"`
	AgentName       string   `json:"agent_name"`
	Phases          []string `json:"phases,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	Success         *bool    `json:"success,omitempty"`
}

// Episode is the learning unit persisted per user request.
type Episode struct {
	EpisodeID        string            `json:"episode_id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	OriginalPrompt   string            `json:"original_prompt"`
	EnrichedPrompt   string            `json:"enriched_prompt"`
	Clarifications   map[string]string `json:"clarifications,omitempty"`
	Context          map[string]any    `json:"context"`
	Keywords         []string          `json:"keywords"`
	Tags             []string          `json:"tags,omitempty"`
	Type             EpisodeType       `json:"type"`
	Outcome          Outcome           `json:"outcome"`
	Success          *bool             `json:"success,omitempty"`
	DurationSeconds  *float64          `json:"duration_seconds,omitempty"`
	CommandsExecuted []string          `json:"commands_executed,omitempty"`
	Agents           []AgentRun        `json:"agents,omitempty"`
	Relationships    []Relationship    `json:"relationships,omitempty"`
	RelevanceScore   float64           `json:"relevance_score,omitempty"`

	// Extra preserves unknown fields for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`
}

// Workflow returns the context.workflow sub-map, creating it if absent.
func (e *Episode) Workflow() map[string]any {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	wf, ok := e.Context["workflow"].(map[string]any)
	if !ok {
		wf = map[string]any{}
		e.Context["workflow"] = wf
	}
	return wf
}

// PhasesCompleted returns the ordered phases_completed list from the
// workflow context.
func (e *Episode) PhasesCompleted() []string {
	raw, ok := e.Workflow()["phases_completed"].([]any)
	if !ok {
		if done, ok := e.Workflow()["phases_completed"].([]string); ok {
			return done
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MarkPhase records the completion timestamp of a phase and appends it to
// phases_completed. Appending the same phase twice is a no-op.
func (e *Episode) MarkPhase(phase int, at time.Time) {
	wf := e.Workflow()
	wf[fmt.Sprintf("phase_%d_timestamp", phase)] = at.UTC().Format(time.RFC3339)
	name := fmt.Sprintf("phase_%d", phase)
	done := e.PhasesCompleted()
	for _, p := range done {
		if p == name {
			return
		}
	}
	wf["phases_completed"] = append(done, name)
}

// NewEpisodeID generates a stable identifier of the form
// ep_<yyyymmdd_hhmmss>_<8 hex>.
func NewEpisodeID(at time.Time) string {
	return fmt.Sprintf("ep_%s_%s", at.UTC().Format("20060102_150405"), shortHex())
}

func shortHex() string {
	id := uuid.New()
	return id.String()[:8]
}
