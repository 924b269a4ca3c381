package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/jsonio"
)

// Store manages pending updates under a root directory: an append-only JSONL
// audit trail, a mutable index of live updates, and an archive of applied
// ones. Single writer per process.
type Store struct {
	mu  sync.Mutex
	dir string
	log *zap.Logger

	now func() time.Time
}

// NewStore creates a pending-update store rooted at dir.
func NewStore(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) journalPath() string { return filepath.Join(s.dir, "pending-updates.jsonl") }
func (s *Store) indexPath() string   { return filepath.Join(s.dir, "pending-index.json") }
func (s *Store) appliedDir() string  { return filepath.Join(s.dir, "applied") }

func (s *Store) archivePath(id string) string {
	return filepath.Join(s.appliedDir(), "update-"+id+".json")
}

// index is the mutable set of updates keyed by id.
type index struct {
	Updated time.Time          `json:"updated"`
	Updates map[string]*Update `json:"updates"`
}

func (s *Store) loadIndex() *index {
	raw, err := os.ReadFile(s.indexPath())
	if err != nil {
		return &index{Updates: map[string]*Update{}}
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		s.log.Warn("corrupted pending index replaced with empty skeleton")
		return &index{Updates: map[string]*Update{}}
	}
	if idx.Updates == nil {
		idx.Updates = map[string]*Update{}
	}
	return &idx
}

func (s *Store) saveIndex(idx *index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pending-updates dir: %w", err)
	}
	idx.Updated = s.now()
	return jsonio.WriteAtomic(s.indexPath(), idx)
}

// auditEvent is one line of pending-updates.jsonl.
type auditEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	UpdateID  string    `json:"update_id"`
	Agent     string    `json:"agent,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Update    *Update   `json:"update,omitempty"`
}

func (s *Store) appendAudit(ev auditEvent) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.log.Warn("pending audit dir create failed", zap.Error(err))
		return
	}
	if err := jsonio.AppendLine(s.journalPath(), ev); err != nil {
		s.log.Warn("pending audit append failed", zap.Error(err))
	}
}

// Create validates a discovery and either inserts a new pending update or,
// when the content hash is already known, bumps the existing record's
// seen_count and returns its id.
func (s *Store) Create(d Discovery) (string, error) {
	if d.Confidence < MinConfidence {
		return "", fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, d.Confidence, MinConfidence)
	}
	if !d.Category.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}
	if !d.Category.Allows(d.TargetSection) {
		return "", fmt.Errorf("%w: %q for %q", ErrSectionNotAllowed, d.TargetSection, d.Category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := ContentHash(d.TargetSection, d.ProposedChange)
	idx := s.loadIndex()

	now := s.now()
	for _, u := range idx.Updates {
		if u.ContentHash != hash {
			continue
		}
		u.SeenCount++
		if d.Agent != "" && !contains(u.SeenByAgents, d.Agent) {
			u.SeenByAgents = append(u.SeenByAgents, d.Agent)
		}
		u.UpdatedAt = now
		if err := s.saveIndex(idx); err != nil {
			return "", err
		}
		s.appendAudit(auditEvent{Event: "seen", Timestamp: now, UpdateID: u.UpdateID, Agent: d.Agent})
		return u.UpdateID, nil
	}

	u := &Update{
		UpdateID:       NewUpdateID(now, uuid.New().String()[:4]),
		ContentHash:    hash,
		Category:       d.Category,
		TargetSection:  d.TargetSection,
		ProposedChange: d.ProposedChange,
		Summary:        d.Summary,
		Confidence:     d.Confidence,
		Status:         StatusPending,
		SeenCount:      1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.Agent != "" {
		u.SeenByAgents = []string{d.Agent}
	}
	idx.Updates[u.UpdateID] = u
	if err := s.saveIndex(idx); err != nil {
		return "", err
	}
	s.appendAudit(auditEvent{Event: "created", Timestamp: now, UpdateID: u.UpdateID, Agent: d.Agent, Update: u})
	return u.UpdateID, nil
}

// Get returns one update, looking in the live index first and the applied
// archive second.
func (s *Store) Get(id string) (*Update, error) {
	idx := s.loadIndex()
	if u, ok := idx.Updates[id]; ok {
		return u, nil
	}
	raw, err := os.ReadFile(s.archivePath(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to parse archived update %s: %w", id, err)
	}
	return &u, nil
}

// List returns live updates, optionally filtered by status, oldest first.
func (s *Store) List(status Status) ([]*Update, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	idx := s.loadIndex()
	var out []*Update
	for _, u := range idx.Updates {
		if status == "" || u.Status == status {
			out = append(out, u)
		}
	}
	sortByCreation(out)
	return out, nil
}

// Approve moves a pending update to approved.
func (s *Store) Approve(id string) error { return s.transition(id, StatusApproved) }

// Reject moves a pending update to rejected.
func (s *Store) Reject(id string) error { return s.transition(id, StatusRejected) }

func (s *Store) transition(id string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadIndex()
	u, ok := idx.Updates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !canTransition(u.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.Status, to)
	}
	u.Status = to
	u.UpdatedAt = s.now()
	if err := s.saveIndex(idx); err != nil {
		return err
	}
	s.appendAudit(auditEvent{Event: "status_change", Timestamp: u.UpdatedAt, UpdateID: id, Status: to})
	return nil
}

// Apply merges an approved update into the context document at contextPath:
// backup, recursive merge under sections.<target_section>, atomic rewrite,
// then archive. Only approved updates may be applied.
func (s *Store) Apply(id, contextPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadIndex()
	u, ok := idx.Updates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !canTransition(u.Status, StatusApplied) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.Status, StatusApplied)
	}

	doc, err := readContext(contextPath)
	if err != nil {
		return err
	}
	now := s.now()
	if err := backupContext(contextPath, now); err != nil {
		return err
	}

	sections, ok := doc["sections"].(map[string]any)
	if !ok {
		sections = map[string]any{}
		doc["sections"] = sections
	}
	target, _ := sections[u.TargetSection].(map[string]any)
	sections[u.TargetSection] = mergeDeep(target, u.ProposedChange)

	metadata, ok := doc["metadata"].(map[string]any)
	if !ok {
		metadata = map[string]any{}
		doc["metadata"] = metadata
	}
	metadata["last_updated"] = now.Format(time.RFC3339)

	if err := jsonio.WriteAtomic(contextPath, doc); err != nil {
		return err
	}

	u.Status = StatusApplied
	u.UpdatedAt = now
	if err := os.MkdirAll(s.appliedDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := jsonio.WriteAtomic(s.archivePath(id), u); err != nil {
		return err
	}
	delete(idx.Updates, id)
	if err := s.saveIndex(idx); err != nil {
		return err
	}
	s.appendAudit(auditEvent{Event: "applied", Timestamp: now, UpdateID: id, Status: StatusApplied})
	return nil
}

// readContext loads the context document; a missing file starts empty.
func readContext(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read context document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse context document: %w", err)
	}
	return doc, nil
}

// backupContext copies the current document aside with a timestamp suffix.
func backupContext(path string, now time.Time) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read context for backup: %w", err)
	}
	backup := fmt.Sprintf("%s.backup-%s", path, now.Format("20060102-150405"))
	if err := os.WriteFile(backup, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// mergeDeep applies change onto base recursively: nested maps merge, all
// other values overwrite. base may be nil.
func mergeDeep(base, change map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range change {
		if cm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = mergeDeep(bm, cm)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortByCreation(updates []*Update) {
	sort.Slice(updates, func(i, j int) bool {
		if updates[i].CreatedAt.Equal(updates[j].CreatedAt) {
			return updates[i].UpdateID < updates[j].UpdateID
		}
		return updates[i].CreatedAt.Before(updates[j].CreatedAt)
	})
}
