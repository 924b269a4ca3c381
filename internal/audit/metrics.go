package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Summary aggregates journal records over a trailing window.
type Summary struct {
	Days              int                `json:"days"`
	Total             int                `json:"total"`
	SuccessRate       float64            `json:"success_rate"`
	AvgDurationMs     float64            `json:"avg_duration_ms"`
	CommandTypes      map[string]int     `json:"command_type_distribution"`
	TierDistribution  map[string]int     `json:"tier_distribution"`
	TopTypes          []string           `json:"top_types"`
}

// Summarize aggregates the last N days of daily journals under logsDir.
// It is pure: no files are written, and it is safe to call concurrently
// with an active writer (partial trailing lines are skipped).
func Summarize(logsDir string, days int) (*Summary, error) {
	if days <= 0 {
		days = 7
	}
	summary := &Summary{
		Days:             days,
		CommandTypes:     map[string]int{},
		TierDistribution: map[string]int{},
	}

	var totalDuration int64
	var successes int

	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		path := filepath.Join(logsDir, "audit-"+day+".jsonl")
		records, err := readJournal(path)
		if err != nil {
			continue
		}
		for _, rec := range records {
			summary.Total++
			if rec.Success {
				successes++
			}
			totalDuration += rec.DurationMs
			if rec.CommandType != "" {
				summary.CommandTypes[rec.CommandType]++
			}
			if rec.Tier != "" {
				summary.TierDistribution[rec.Tier]++
			}
		}
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(successes) / float64(summary.Total)
		summary.AvgDurationMs = float64(totalDuration) / float64(summary.Total)
	}
	summary.TopTypes = topKeys(summary.CommandTypes, 5)
	return summary, nil
}

// readJournal parses a JSONL journal, skipping unparseable lines.
func readJournal(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// topKeys returns up to n keys sorted by descending count, ties by name.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
