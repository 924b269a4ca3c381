package memory

import (
	"encoding/json"
	"os"
	"time"
)

// IndexEntry is the per-episode summary kept in the secondary index.
type IndexEntry struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	Keywords       []string    `json:"keywords,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	Type           EpisodeType `json:"type"`
	Title          string      `json:"title"`
	Outcome        Outcome     `json:"outcome"`
	RelevanceScore float64     `json:"relevance_score"`
}

// indexKeywordLimit caps keywords copied into an index entry.
const indexKeywordLimit = 10

// Index is the mutable secondary index over canonical episode files.
// It is rebuildable: corruption is recovered by replacing it with an empty
// skeleton, and migrate can repopulate it from the episodes directory.
type Index struct {
	Version  string       `json:"version"`
	Updated  time.Time    `json:"updated"`
	Episodes []IndexEntry `json:"episodes"`
}

func newIndex() *Index {
	return &Index{Version: "1", Episodes: []IndexEntry{}}
}

// loadIndex reads the index file. A missing or unparseable file yields an
// empty skeleton; corruption is reported through the second return value so
// the caller can log it.
func loadIndex(path string) (*Index, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return newIndex(), false
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return newIndex(), true
	}
	if idx.Episodes == nil {
		idx.Episodes = []IndexEntry{}
	}
	return &idx, false
}

// entryFor builds the index summary of an episode.
func entryFor(ep *Episode) IndexEntry {
	keywords := ep.Keywords
	if len(keywords) > indexKeywordLimit {
		keywords = keywords[:indexKeywordLimit]
	}
	score := ep.RelevanceScore
	if score == 0 {
		score = 1.0
	}
	return IndexEntry{
		ID:             ep.EpisodeID,
		Timestamp:      ep.CreatedAt,
		Keywords:       keywords,
		Tags:           ep.Tags,
		Type:           ep.Type,
		Title:          DeriveTitle(ep.EnrichedPrompt),
		Outcome:        ep.Outcome,
		RelevanceScore: score,
	}
}

// upsert inserts or replaces the entry with the same id.
func (idx *Index) upsert(entry IndexEntry) {
	for i := range idx.Episodes {
		if idx.Episodes[i].ID == entry.ID {
			idx.Episodes[i] = entry
			return
		}
	}
	idx.Episodes = append(idx.Episodes, entry)
}

// remove deletes the entry with the given id. Missing ids are a no-op.
func (idx *Index) remove(id string) {
	for i := range idx.Episodes {
		if idx.Episodes[i].ID == id {
			idx.Episodes = append(idx.Episodes[:i], idx.Episodes[i+1:]...)
			return
		}
	}
}

// trim keeps only the newest max entries by timestamp.
func (idx *Index) trim(max int) {
	if max <= 0 || len(idx.Episodes) <= max {
		return
	}
	// Entries are appended in creation order; drop from the front.
	idx.Episodes = idx.Episodes[len(idx.Episodes)-max:]
}
