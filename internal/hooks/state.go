// Package hooks implements the host-runtime integration: the pre-hook that
// gates a tool invocation through the policy engine and the post-hook that
// audits its result. State is handed from pre to post through a single-slot
// file; hook errors never propagate, they log and continue.
package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gaiaops/gaia/internal/jsonio"
	"github.com/gaiaops/gaia/internal/security"
)

// SessionEnv names the session id environment variable set by the host.
const SessionEnv = "CLAUDE_SESSION_ID"

// SessionID returns the host-provided session id, generating a
// session-<HHMMSS>-<8 hex> one when unset.
func SessionID() string {
	if id := os.Getenv(SessionEnv); id != "" {
		return id
	}
	return fmt.Sprintf("session-%s-%s", time.Now().UTC().Format("150405"), uuid.New().String()[:8])
}

// State is the pre→post handoff for one tool invocation. Exactly one state
// may be live per session.
type State struct {
	Tool        string            `json:"tool"`
	Command     string            `json:"command"`
	Tier        security.Tier     `json:"tier"`
	StartedAt   time.Time         `json:"started_at"`
	SessionID   string            `json:"session_id"`
	PreDecision security.Decision `json:"pre_decision"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// StateFile stores the live hook state at a fixed path.
type StateFile struct {
	path string
}

// NewStateFile wraps the handoff file path.
func NewStateFile(path string) *StateFile { return &StateFile{path: path} }

// Save records the live state, replacing any stale leftover.
func (f *StateFile) Save(s *State) error {
	return jsonio.WriteAtomic(f.path, s)
}

// Consume reads and deletes the live state. The one-writer-one-reader
// contract makes the unlocked read-then-remove safe.
func (f *StateFile) Consume() (*State, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		os.Remove(f.path)
		return nil, fmt.Errorf("corrupted hook state: %w", err)
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return &s, nil
}
