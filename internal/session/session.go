// Package session tracks resumable per-agent execution sessions. Each agent
// gets one state file under session/<agent_id>/state.json; the phase machine
// and resume window decide whether an interrupted agent picks up where it
// left off or starts fresh.
package session

import (
	"errors"
	"fmt"
	"time"
)

// Phase is a session's position in the agent lifecycle.
type Phase string

const (
	PhaseInitializing  Phase = "initializing"
	PhaseInvestigating Phase = "investigating"
	PhasePlanning      Phase = "planning"
	PhaseApproval      Phase = "approval"
	PhaseExecuting     Phase = "executing"
	PhaseValidating    Phase = "validating"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
	PhaseAbandoned     Phase = "abandoned"
)

// Valid reports whether the phase is a member of the enum.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInitializing, PhaseInvestigating, PhasePlanning, PhaseApproval,
		PhaseExecuting, PhaseValidating, PhaseCompleted, PhaseFailed, PhaseAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the phase permanently disables resume.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseAbandoned:
		return true
	}
	return false
}

// Resumable reports whether an agent in this phase may be resumed.
func (p Phase) Resumable() bool {
	switch p {
	case PhaseApproval, PhaseInvestigating, PhasePlanning:
		return true
	}
	return false
}

// canTransition enforces the phase machine: initializing fans out to the
// working phases, working phases move between each other or to a terminal
// phase, terminal phases never move.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if !to.Valid() || to == PhaseInitializing {
		return false
	}
	return true
}

// Transition is one history entry.
type Transition struct {
	FromPhase Phase     `json:"from_phase"`
	ToPhase   Phase     `json:"to_phase"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the persisted state of one agent execution.
type Session struct {
	AgentID     string         `json:"agent_id"`
	AgentName   string         `json:"agent_name"`
	Purpose     string         `json:"purpose"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
	Phase       Phase          `json:"phase"`
	ResumeReady bool           `json:"resume_ready"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	History     []Transition   `json:"history"`
	ErrorCount  int            `json:"error_count"`
	LastError   string         `json:"last_error,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
	Summary     string         `json:"summary,omitempty"`

	// Extra preserves unknown fields for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`
}

// Resume eligibility bounds.
const (
	ResumeWindow   = 30 * time.Minute
	MaxResumeError = 3
)

// resumeReadyAt evaluates the full resume conjunction at a point in time.
func (s *Session) resumeReadyAt(now time.Time) bool {
	return s.Phase.Resumable() &&
		now.Sub(s.LastUpdated) < ResumeWindow &&
		s.ErrorCount < MaxResumeError
}

// Store errors.
var (
	ErrNotFound          = errors.New("session not found")
	ErrInvalidPhase      = errors.New("invalid session phase")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrFinalized         = errors.New("session already finalized")
)

// NewAgentID generates an identifier of the form
// agent-<yyyymmdd-hhmmss>-<8 hex>.
func NewAgentID(at time.Time, hex8 string) string {
	return fmt.Sprintf("agent-%s-%s", at.UTC().Format("20060102-150405"), hex8)
}
