// Package workflow drives one user request through the seven-phase pipeline:
// clarification, routing, context provisioning, planning, approval,
// realization, and the context-learning update pass. The orchestrator owns
// the in-memory state for exactly one request; phases advance strictly
// forward and every advance is validated against the transition rules.
package workflow

import (
	"fmt"
	"time"

	"github.com/gaiaops/gaia/internal/jsonio"
)

// Phase is a position in the workflow pipeline.
type Phase int

const (
	PhaseClarification Phase = iota
	PhaseRouting
	PhaseContext
	PhasePlanning
	PhaseApproval
	PhaseRealization
	PhaseSsotUpdate
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseClarification:
		return "clarification"
	case PhaseRouting:
		return "routing"
	case PhaseContext:
		return "context"
	case PhasePlanning:
		return "planning"
	case PhaseApproval:
		return "approval"
	case PhaseRealization:
		return "realization"
	case PhaseSsotUpdate:
		return "ssot_update"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether the phase is a member of the enum.
func (p Phase) Valid() bool {
	return p >= PhaseClarification && p <= PhaseSsotUpdate
}

// CanEnter reports whether a request may start at this phase.
func (p Phase) CanEnter() bool {
	return p == PhaseClarification || p == PhaseRouting
}

// CanTransition reports whether the pipeline may move from one phase to
// another. The only legal moves are the immediate successor and the
// routing→planning skip for requests that need no context provisioning.
func CanTransition(from, to Phase) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == from+1 {
		return true
	}
	return from == PhaseRouting && to == PhasePlanning
}

// PhaseValidationResult is the verdict of a phase guard or transition check.
type PhaseValidationResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Phase   Phase  `json:"phase"`
}

func allowed(p Phase) PhaseValidationResult {
	return PhaseValidationResult{Allowed: true, Phase: p}
}

func denied(p Phase, format string, args ...any) PhaseValidationResult {
	return PhaseValidationResult{Phase: p, Reason: fmt.Sprintf(format, args...)}
}

// machine tracks the current phase for one request.
type machine struct {
	current Phase
	entered bool
}

// advance validates and performs one phase transition.
func (m *machine) advance(to Phase) PhaseValidationResult {
	if !m.entered {
		if !to.CanEnter() {
			return denied(to, "workflow must start at clarification or routing, not %s", to)
		}
		m.current = to
		m.entered = true
		return allowed(to)
	}
	if !CanTransition(m.current, to) {
		return denied(to, "illegal transition %s -> %s", m.current, to)
	}
	m.current = to
	return allowed(to)
}

// persistedState is the on-disk mirror of the current phase, written on every
// transition so a crashed request leaves its position behind.
type persistedState struct {
	Phase     string    `json:"phase"`
	EpisodeID string    `json:"episode_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func saveState(path string, phase Phase, episodeID, agentID string, at time.Time) error {
	if path == "" {
		return nil
	}
	return jsonio.WriteAtomic(path, persistedState{
		Phase:     phase.String(),
		EpisodeID: episodeID,
		AgentID:   agentID,
		UpdatedAt: at.UTC(),
	})
}
