package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/jsonio"
)

// Store manages session state files under a root directory, one
// <agent_id>/state.json per agent. It is the single writer for its
// directory within a process.
type Store struct {
	mu  sync.Mutex
	dir string
	log *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewStore creates a session store rooted at dir.
func NewStore(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) statePath(agentID string) string {
	return filepath.Join(s.dir, agentID, "state.json")
}

// CreateSession registers a new agent session in the initializing phase and
// returns its id.
func (s *Store) CreateSession(agentName, purpose string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := NewAgentID(now, uuid.New().String()[:8])
	sess := &Session{
		AgentID:     id,
		AgentName:   agentName,
		Purpose:     purpose,
		CreatedAt:   now,
		LastUpdated: now,
		Phase:       PhaseInitializing,
		Metadata:    metadata,
		History:     []Transition{},
	}
	if err := s.write(sess); err != nil {
		return "", err
	}
	return id, nil
}

// GetSession reads one session's state.
func (s *Store) GetSession(agentID string) (*Session, error) {
	raw, err := os.ReadFile(s.statePath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", agentID, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", agentID, err)
	}
	return &sess, nil
}

// UpdateState advances the session's phase and/or merges metadata. An error
// argument increments error_count without changing the phase machine. Every
// phase change is appended to history.
func (s *Store) UpdateState(agentID string, phase Phase, metadata map[string]any, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.GetSession(agentID)
	if err != nil {
		return err
	}

	now := s.now()
	if phase != "" && phase != sess.Phase {
		if !phase.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
		}
		if !canTransition(sess.Phase, phase) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.Phase, phase)
		}
		sess.History = append(sess.History, Transition{
			FromPhase: sess.Phase,
			ToPhase:   phase,
			Timestamp: now,
		})
		sess.Phase = phase
	}
	for k, v := range metadata {
		if sess.Metadata == nil {
			sess.Metadata = map[string]any{}
		}
		sess.Metadata[k] = v
	}
	if errMsg != "" {
		sess.ErrorCount++
		sess.LastError = errMsg
	}
	sess.LastUpdated = now
	return s.write(sess)
}

// ShouldResume reports whether the agent can pick up its interrupted work:
// resumable phase, updated within the last 30 minutes, fewer than 3 errors.
// A missing session is simply not resumable.
func (s *Store) ShouldResume(agentID string) bool {
	sess, err := s.GetSession(agentID)
	if err != nil {
		return false
	}
	return sess.resumeReadyAt(s.now())
}

// FinalizeSession moves the session to a terminal phase and permanently
// disables resume. Finalizing twice is an error.
func (s *Store) FinalizeSession(agentID string, outcome Phase, summary string) error {
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidPhase, outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.GetSession(agentID)
	if err != nil {
		return err
	}
	if sess.Phase.Terminal() {
		return fmt.Errorf("%w: %s", ErrFinalized, agentID)
	}

	now := s.now()
	sess.History = append(sess.History, Transition{
		FromPhase: sess.Phase,
		ToPhase:   outcome,
		Timestamp: now,
	})
	sess.Phase = outcome
	sess.Outcome = string(outcome)
	sess.Summary = summary
	sess.LastUpdated = now
	return s.write(sess)
}

// Filters narrows ListSessions output. Zero values match everything.
type Filters struct {
	AgentName   string
	Phase       Phase
	ResumeReady bool
}

// ListSessions returns all sessions matching the filters, newest first.
func (s *Store) ListSessions(f Filters) ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session dir: %w", err)
	}

	var out []*Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sess, err := s.GetSession(entry.Name())
		if err != nil {
			s.log.Warn("skipping unreadable session", zap.String("agent_id", entry.Name()))
			continue
		}
		if f.AgentName != "" && sess.AgentName != f.AgentName {
			continue
		}
		if f.Phase != "" && sess.Phase != f.Phase {
			continue
		}
		if f.ResumeReady && !sess.resumeReadyAt(s.now()) {
			continue
		}
		out = append(out, sess)
	}
	// Ids embed the creation timestamp, so lexicographic order is
	// chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CleanupOldSessions removes sessions whose last update is older than the
// threshold. Returns the number removed; removing nothing is success.
func (s *Store) CleanupOldSessions(hours int) (int, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read session dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sess, err := s.GetSession(entry.Name())
		if err != nil || sess.LastUpdated.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
				return removed, fmt.Errorf("failed to remove session %s: %w", entry.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}

// write recomputes the derived resume flag and persists the state file.
func (s *Store) write(sess *Session) error {
	sess.ResumeReady = sess.resumeReadyAt(s.now())
	dir := filepath.Join(s.dir, sess.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	return jsonio.WriteAtomic(s.statePath(sess.AgentID), sess)
}
