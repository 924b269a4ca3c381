package memory

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SearchResult pairs a retrieved episode with its match score.
type SearchResult struct {
	Episode *Episode
	Score   float64
}

// Default retrieval bounds.
const (
	DefaultMaxResults = 5
	DefaultMinScore   = 0.1
)

// SearchEpisodes ranks stored episodes against a free-text query. Scoring is
// additive over tags, keyword overlap, title overlap, and type, then damped
// by recency and the episode's stored relevance score. Results below minScore
// are dropped.
func (s *Store) SearchEpisodes(query string, maxResults int, minScore float64) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	s.mu.Lock()
	idx, corrupted := loadIndex(s.indexPath())
	s.mu.Unlock()
	if corrupted {
		s.log.Warn("corrupted index replaced with empty skeleton")
	}

	queryLower := strings.ToLower(query)
	queryWords := wordSet(queryLower)
	now := time.Now().UTC()

	type scored struct {
		id    string
		score float64
	}
	var hits []scored
	for _, entry := range idx.Episodes {
		score := matchScore(entry, queryLower, queryWords, now)
		if score >= minScore {
			hits = append(hits, scored{id: entry.ID, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		ep, err := s.GetEpisode(h.id)
		if err != nil {
			// Index entry without a readable episode: skip, it will be
			// reconciled by the next migrate.
			s.log.Warn("index entry has no readable episode", zap.String("id", h.id))
			continue
		}
		results = append(results, SearchResult{Episode: ep, Score: h.score})
	}
	return results, nil
}

// matchScore computes one entry's score against the query.
func matchScore(entry IndexEntry, queryLower string, queryWords map[string]bool, now time.Time) float64 {
	score := 0.0
	for _, tag := range entry.Tags {
		if tag != "" && strings.Contains(queryLower, strings.ToLower(tag)) {
			score += 0.4
		}
	}
	score += 0.3 * overlapRatio(queryWords, entry.Keywords)
	score += 0.2 * overlapRatio(queryWords, wordPattern.FindAllString(strings.ToLower(entry.Title), -1))
	if typeInQuery(entry.Type, queryLower, queryWords) {
		score += 0.1
	}

	score *= timeFactor(now.Sub(entry.Timestamp))

	relevance := entry.RelevanceScore
	if relevance == 0 {
		relevance = 1.0
	}
	return score * relevance
}

// overlapRatio is |query ∩ words| / |words|.
func overlapRatio(queryWords map[string]bool, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if queryWords[strings.ToLower(w)] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// typeInQuery reports whether the episode type is named by the query, either
// verbatim or as a word stem ("deploy" names "deployment").
func typeInQuery(t EpisodeType, queryLower string, queryWords map[string]bool) bool {
	name := string(t)
	if name == "" || t == TypeGeneral {
		return false
	}
	if strings.Contains(queryLower, name) {
		return true
	}
	for w := range queryWords {
		if len(w) >= 4 && strings.HasPrefix(name, w) {
			return true
		}
	}
	return false
}

// timeFactor dampens matches by episode age.
func timeFactor(age time.Duration) float64 {
	switch days := age.Hours() / 24; {
	case days < 7:
		return 1.0
	case days < 30:
		return 0.9
	case days < 90:
		return 0.7
	case days < 180:
		return 0.5
	default:
		return 0.3
	}
}

func wordSet(textLower string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(textLower, -1) {
		set[w] = true
	}
	return set
}
