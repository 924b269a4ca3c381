package memory

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), Options{})
}

func TestStoreEpisodeGeneratesFields(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StoreEpisode(&Episode{
		OriginalPrompt: "deploy the graphql server to production",
		Tags:           []string{"deployment"},
	})
	if err != nil {
		t.Fatalf("StoreEpisode() error = %v", err)
	}
	if id == "" {
		t.Fatal("StoreEpisode() returned empty id")
	}

	ep, err := s.GetEpisode(id)
	if err != nil {
		t.Fatalf("GetEpisode() error = %v", err)
	}
	if ep.EnrichedPrompt != ep.OriginalPrompt {
		t.Errorf("enriched prompt = %q, want copy of original", ep.EnrichedPrompt)
	}
	if len(ep.Keywords) == 0 {
		t.Error("expected derived keywords")
	}
	if ep.Type != TypeDeployment {
		t.Errorf("type = %q, want %q", ep.Type, TypeDeployment)
	}
	if ep.Outcome != OutcomeUnknown {
		t.Errorf("outcome = %q, want %q", ep.Outcome, OutcomeUnknown)
	}
	if _, ok := ep.Context["workflow"]; !ok {
		t.Error("expected workflow sub-map in context")
	}
}

func TestStoreEpisodeRejectsInvalidOutcome(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StoreEpisode(&Episode{OriginalPrompt: "x", Outcome: "maybe"})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("StoreEpisode() error = %v, want ErrInvalidOutcome", err)
	}
}

func TestGetEpisodeFallsBackToJournal(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StoreEpisode(&Episode{OriginalPrompt: "validate the cluster"})
	if err != nil {
		t.Fatalf("StoreEpisode() error = %v", err)
	}

	// Corrupt the canonical file; the journal still has the full record.
	if err := os.WriteFile(s.episodePath(id), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	ep, err := s.GetEpisode(id)
	if err != nil {
		t.Fatalf("GetEpisode() after corruption error = %v", err)
	}
	if ep.OriginalPrompt != "validate the cluster" {
		t.Errorf("recovered prompt = %q", ep.OriginalPrompt)
	}
}

func TestUpdateOutcome(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StoreEpisode(&Episode{OriginalPrompt: "deploy api"})
	if err != nil {
		t.Fatalf("StoreEpisode() error = %v", err)
	}

	if err := s.UpdateOutcome(id, "banana", nil, nil, nil); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("UpdateOutcome(invalid) error = %v, want ErrInvalidOutcome", err)
	}

	ok := true
	dur := 42.5
	if err := s.UpdateOutcome(id, OutcomeSuccess, &ok, &dur, []string{"kubectl apply --dry-run=client"}); err != nil {
		t.Fatalf("UpdateOutcome() error = %v", err)
	}

	ep, err := s.GetEpisode(id)
	if err != nil {
		t.Fatal(err)
	}
	if ep.Outcome != OutcomeSuccess {
		t.Errorf("outcome = %q, want success", ep.Outcome)
	}
	if ep.DurationSeconds == nil || *ep.DurationSeconds != 42.5 {
		t.Errorf("duration = %v, want 42.5", ep.DurationSeconds)
	}
	if len(ep.CommandsExecuted) != 1 {
		t.Errorf("commands = %v", ep.CommandsExecuted)
	}

	actions := s.JournalActions(id)
	want := []string{"stored", "status_change"}
	if len(actions) != len(want) {
		t.Fatalf("journal actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("journal action[%d] = %q, want %q", i, actions[i], want[i])
		}
	}
}

func TestUpdateOutcomeDerivesDurationFromPhases(t *testing.T) {
	s := newTestStore(t)

	ep := &Episode{OriginalPrompt: "deploy api"}
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	ep.MarkPhase(0, start)
	ep.MarkPhase(5, start.Add(90*time.Second))
	id, err := s.StoreEpisode(ep)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateOutcome(id, OutcomeSuccess, nil, nil, nil); err != nil {
		t.Fatalf("UpdateOutcome() error = %v", err)
	}
	got, err := s.GetEpisode(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 90 {
		t.Errorf("derived duration = %v, want 90", got.DurationSeconds)
	}
}

func TestAddRelationship(t *testing.T) {
	s := newTestStore(t)

	src, _ := s.StoreEpisode(&Episode{OriginalPrompt: "fix crashloop"})
	tgt, _ := s.StoreEpisode(&Episode{OriginalPrompt: "deploy api"})

	if err := s.AddRelationship(src, tgt, "FIXES"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("AddRelationship(bad kind) error = %v, want ErrInvalidKind", err)
	}
	if err := s.AddRelationship(src, "ep_missing", RelSolves); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddRelationship(missing target) error = %v, want ErrNotFound", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.AddRelationship(src, tgt, RelSolves); err != nil {
			t.Fatalf("AddRelationship() attempt %d error = %v", i, err)
		}
	}
	ep, err := s.GetEpisode(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(ep.Relationships) != 1 {
		t.Errorf("relationships = %v, want single SOLVES edge", ep.Relationships)
	}
}

func TestDeleteEpisodePreservesJournal(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StoreEpisode(&Episode{OriginalPrompt: "remove old namespace"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEpisode(id); err != nil {
		t.Fatalf("DeleteEpisode() error = %v", err)
	}
	// Idempotent.
	if err := s.DeleteEpisode(id); err != nil {
		t.Fatalf("DeleteEpisode() second call error = %v", err)
	}

	// The canonical file and index entry are gone but the journal still
	// holds the historical record.
	if _, err := os.Stat(s.episodePath(id)); !os.IsNotExist(err) {
		t.Errorf("canonical file still present, stat err = %v", err)
	}
	idx, _ := loadIndex(s.indexPath())
	for _, e := range idx.Episodes {
		if e.ID == id {
			t.Error("index still lists deleted episode")
		}
	}

	found := false
	f, err := os.Open(s.journalPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec journalRecord
		if json.Unmarshal(sc.Bytes(), &rec) == nil && rec.EpisodeID == id {
			found = true
		}
	}
	if !found {
		t.Error("journal no longer holds the deleted episode")
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetEpisode("ep_nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetEpisode() error = %v, want ErrNotFound", err)
	}
}

func TestCleanupOld(t *testing.T) {
	s := newTestStore(t)

	oldID, _ := s.StoreEpisode(&Episode{OriginalPrompt: "ancient deploy"})
	newID, _ := s.StoreEpisode(&Episode{OriginalPrompt: "recent deploy"})

	// Backdate the old episode in the index and its canonical file.
	ep, err := s.GetEpisode(oldID)
	if err != nil {
		t.Fatal(err)
	}
	ep.CreatedAt = time.Now().UTC().AddDate(0, 0, -365)
	if err := s.rewriteForTest(ep); err != nil {
		t.Fatal(err)
	}

	removed, err := s.CleanupOld(180)
	if err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(s.episodePath(newID)); err != nil {
		t.Errorf("recent episode removed: %v", err)
	}
}

func TestRebuildIndex(t *testing.T) {
	s := newTestStore(t)

	id1, _ := s.StoreEpisode(&Episode{OriginalPrompt: "deploy api"})
	id2, _ := s.StoreEpisode(&Episode{OriginalPrompt: "validate cluster"})

	if err := os.Remove(s.indexPath()); err != nil {
		t.Fatal(err)
	}
	count, err := s.RebuildIndex()
	if err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("rebuilt count = %d, want 2", count)
	}
	idx, _ := loadIndex(s.indexPath())
	got := map[string]bool{}
	for _, e := range idx.Episodes {
		got[e.ID] = true
	}
	if !got[id1] || !got[id2] {
		t.Errorf("rebuilt index missing episodes: %v", got)
	}
}

func TestCorruptedIndexYieldsSkeleton(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.indexPath(), []byte("]["), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, corrupted := loadIndex(s.indexPath())
	if !corrupted {
		t.Error("expected corruption to be reported")
	}
	if len(idx.Episodes) != 0 {
		t.Errorf("skeleton index has %d episodes", len(idx.Episodes))
	}
}

// rewriteForTest rewrites an episode's canonical file and index entry so
// tests can backdate timestamps.
func (s *Store) rewriteForTest(ep *Episode) error {
	raw, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.episodePath(ep.EpisodeID), raw, 0o644); err != nil {
		return err
	}
	idx, _ := loadIndex(s.indexPath())
	idx.upsert(entryFor(ep))
	raw, err = json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, "index.json"), raw, 0o644)
}
