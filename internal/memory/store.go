package memory

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/jsonio"
)

// Store errors.
var (
	ErrNotFound       = errors.New("episode not found")
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrInvalidKind    = errors.New("invalid relationship kind")
)

// Store manages the on-disk episodic memory: one canonical JSON file per
// episode, an append-only JSONL audit log, and the secondary index.
// The Store is the single writer for its directory within a process.
type Store struct {
	mu sync.Mutex

	dir             string
	maxIndexEntries int
	stopWords       []string
	log             *zap.Logger
}

// Options configures a Store.
type Options struct {
	MaxIndexEntries int
	StopWords       []string
	Logger          *zap.Logger
}

// NewStore creates an episode store rooted at dir.
func NewStore(dir string, opts Options) *Store {
	if opts.MaxIndexEntries <= 0 {
		opts.MaxIndexEntries = 1000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		dir:             dir,
		maxIndexEntries: opts.MaxIndexEntries,
		stopWords:       opts.StopWords,
		log:             opts.Logger,
	}
}

func (s *Store) episodesDir() string { return filepath.Join(s.dir, "episodes") }
func (s *Store) indexPath() string   { return filepath.Join(s.dir, "index.json") }
func (s *Store) journalPath() string { return filepath.Join(s.dir, "episodes.jsonl") }

func (s *Store) episodePath(id string) string {
	return filepath.Join(s.episodesDir(), "episode-"+id+".json")
}

// StoreEpisode persists a new episode and returns its id. A missing id is
// generated; keywords, type, and title are derived when absent.
func (s *Store) StoreEpisode(ep *Episode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if ep.EpisodeID == "" {
		ep.EpisodeID = NewEpisodeID(now)
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now
	if ep.EnrichedPrompt == "" {
		ep.EnrichedPrompt = ep.OriginalPrompt
	}
	if len(ep.Keywords) == 0 {
		ep.Keywords = ExtractKeywords(ep.OriginalPrompt+" "+ep.EnrichedPrompt, s.stopWords)
	}
	if ep.Type == "" {
		ep.Type = DetermineType(ep.Keywords)
	}
	if ep.Outcome == "" {
		ep.Outcome = OutcomeUnknown
	}
	if !ep.Outcome.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, ep.Outcome)
	}
	// The workflow sub-map is mandatory in context.
	ep.Workflow()

	if err := os.MkdirAll(s.episodesDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create episodes dir: %w", err)
	}
	if err := jsonio.WriteAtomic(s.episodePath(ep.EpisodeID), ep); err != nil {
		return "", err
	}
	s.appendJournal("stored", ep)
	s.updateIndex(func(idx *Index) {
		idx.upsert(entryFor(ep))
		idx.trim(s.maxIndexEntries)
	})
	return ep.EpisodeID, nil
}

// GetEpisode reads the canonical episode file. If it is absent or corrupted,
// the append-only journal is scanned as a fallback.
func (s *Store) GetEpisode(id string) (*Episode, error) {
	raw, err := os.ReadFile(s.episodePath(id))
	if err == nil {
		var ep Episode
		if jerr := json.Unmarshal(raw, &ep); jerr == nil {
			return &ep, nil
		}
		s.log.Warn("corrupted episode file", zap.String("id", id))
	}
	if ep := s.scanJournal(id); ep != nil {
		return ep, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// UpdateOutcome records an episode's terminal state. Unknown outcomes are
// rejected; the change is journaled as a status-change record.
func (s *Store) UpdateOutcome(id string, outcome Outcome, success *bool, duration *float64, commands []string) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ep, err := s.GetEpisode(id)
	if err != nil {
		return err
	}
	ep.Outcome = outcome
	ep.Success = success
	if duration != nil {
		ep.DurationSeconds = duration
	} else if d := ep.derivedDuration(); d != nil {
		ep.DurationSeconds = d
	}
	if len(commands) > 0 {
		ep.CommandsExecuted = append(ep.CommandsExecuted, commands...)
	}
	ep.UpdatedAt = time.Now().UTC()

	if err := jsonio.WriteAtomic(s.episodePath(id), ep); err != nil {
		return err
	}
	s.appendStatusChange(id, outcome)
	s.updateIndex(func(idx *Index) {
		idx.upsert(entryFor(ep))
	})
	return nil
}

// AddRelationship records a labeled edge between two stored episodes.
// The same (source, target, kind) triple is idempotent.
func (s *Store) AddRelationship(sourceID, targetID string, kind RelationKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.GetEpisode(sourceID)
	if err != nil {
		return err
	}
	if _, err := s.GetEpisode(targetID); err != nil {
		return err
	}

	rel := Relationship{SourceID: sourceID, TargetID: targetID, Kind: kind}
	for _, existing := range src.Relationships {
		if existing == rel {
			return nil
		}
	}
	src.Relationships = append(src.Relationships, rel)
	src.UpdatedAt = time.Now().UTC()
	return jsonio.WriteAtomic(s.episodePath(sourceID), src)
}

// DeleteEpisode removes the canonical file and index entry. The journal is
// untouched: deletion preserves the audit trail. Deleting an absent episode
// succeeds.
func (s *Store) DeleteEpisode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.episodePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete episode %s: %w", id, err)
	}
	s.updateIndex(func(idx *Index) {
		idx.remove(id)
	})
	return nil
}

// CleanupOld removes episodes older than the threshold from the index and
// the episodes directory, leaving the journal intact. Returns the number of
// episodes removed.
func (s *Store) CleanupOld(days int) (int, error) {
	if days <= 0 {
		days = 180
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, corrupted := loadIndex(s.indexPath())
	if corrupted {
		s.log.Warn("corrupted index replaced with empty skeleton")
	}

	removed := 0
	kept := idx.Episodes[:0]
	for _, entry := range idx.Episodes {
		if entry.Timestamp.Before(cutoff) {
			if err := os.Remove(s.episodePath(entry.ID)); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.ID, err)
			}
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	idx.Episodes = kept
	idx.Updated = time.Now().UTC()
	if err := jsonio.WriteAtomic(s.indexPath(), idx); err != nil {
		return removed, err
	}
	return removed, nil
}

// RebuildIndex repopulates index.json from the canonical episode files.
func (s *Store) RebuildIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.episodesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, jsonio.WriteAtomic(s.indexPath(), newIndex())
		}
		return 0, fmt.Errorf("failed to read episodes dir: %w", err)
	}

	idx := newIndex()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.episodesDir(), entry.Name()))
		if err != nil {
			continue
		}
		var ep Episode
		if err := json.Unmarshal(raw, &ep); err != nil {
			s.log.Warn("skipping corrupted episode file", zap.String("file", entry.Name()))
			continue
		}
		idx.upsert(entryFor(&ep))
	}
	idx.trim(s.maxIndexEntries)
	idx.Updated = time.Now().UTC()
	if err := jsonio.WriteAtomic(s.indexPath(), idx); err != nil {
		return 0, err
	}
	return len(idx.Episodes), nil
}

// Index returns a snapshot of the secondary index.
func (s *Store) Index() *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, corrupted := loadIndex(s.indexPath())
	if corrupted {
		s.log.Warn("corrupted index replaced with empty skeleton")
	}
	return idx
}

func (s *Store) updateIndex(mutate func(*Index)) {
	idx, corrupted := loadIndex(s.indexPath())
	if corrupted {
		s.log.Warn("corrupted index replaced with empty skeleton")
	}
	mutate(idx)
	idx.Updated = time.Now().UTC()
	if err := jsonio.WriteAtomic(s.indexPath(), idx); err != nil {
		s.log.Warn("index write failed", zap.Error(err))
	}
}

// journalRecord is one line of episodes.jsonl.
type journalRecord struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	EpisodeID string    `json:"episode_id"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
}

func (s *Store) appendJournal(action string, ep *Episode) {
	s.appendRecord(journalRecord{
		Action:    action,
		Timestamp: time.Now().UTC(),
		EpisodeID: ep.EpisodeID,
		Episode:   ep,
	})
}

func (s *Store) appendStatusChange(id string, outcome Outcome) {
	s.appendRecord(journalRecord{
		Action:    "status_change",
		Timestamp: time.Now().UTC(),
		EpisodeID: id,
		Outcome:   outcome,
	})
}

func (s *Store) appendRecord(rec journalRecord) {
	if err := jsonio.AppendLine(s.journalPath(), rec); err != nil {
		s.log.Warn("journal append failed", zap.Error(err))
	}
}

// scanJournal returns the last full episode record for the id, or nil.
func (s *Store) scanJournal(id string) *Episode {
	f, err := os.Open(s.journalPath())
	if err != nil {
		return nil
	}
	defer f.Close()

	var found *Episode
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.EpisodeID == id && rec.Episode != nil {
			ep := *rec.Episode
			found = &ep
		}
	}
	return found
}

// JournalActions returns the actions journaled for an id, in order. The
// journal survives deletion, so this is how the audit trail is verified.
func (s *Store) JournalActions(id string) []string {
	f, err := os.Open(s.journalPath())
	if err != nil {
		return nil
	}
	defer f.Close()

	var actions []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.EpisodeID == id {
			actions = append(actions, rec.Action)
		}
	}
	return actions
}

// derivedDuration computes phase_5 - phase_0 from workflow timestamps.
func (e *Episode) derivedDuration() *float64 {
	wf := e.Workflow()
	start, ok1 := wf["phase_0_timestamp"].(string)
	end, ok2 := wf["phase_5_timestamp"].(string)
	if !ok1 || !ok2 {
		return nil
	}
	t0, err1 := time.Parse(time.RFC3339, start)
	t5, err2 := time.Parse(time.RFC3339, end)
	if err1 != nil || err2 != nil {
		return nil
	}
	d := t5.Sub(t0).Seconds()
	return &d
}
