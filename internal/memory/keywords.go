package memory

import (
	"regexp"
	"strings"
)

// wordPattern tokenizes lower-cased prompt text.
var wordPattern = regexp.MustCompile(`[a-z]+`)

// maxKeywords caps the keywords stored per episode.
const maxKeywords = 20

// titleLimit caps the derived episode title length.
const titleLimit = 60

// ExtractKeywords tokenizes the text, drops stop-words and words of length
// two or less, deduplicates preserving order, and keeps the first 20.
func ExtractKeywords(text string, stopWords []string) []string {
	stops := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		stops[w] = true
	}

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(word) <= 2 || stops[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// typeSignals maps episode types to their keyword families. Order matters:
// the first type with a hit wins.
var typeSignals = []struct {
	episodeType EpisodeType
	words       []string
}{
	{TypeDeployment, []string{"deploy", "deployment", "release", "rollout", "ship", "desplegar"}},
	{TypeTroubleshooting, []string{"debug", "error", "fix", "issue", "crash", "fail", "failing", "broken", "troubleshoot"}},
	{TypeDeletion, []string{"delete", "remove", "destroy", "cleanup", "eliminar", "borrar"}},
	{TypeCreation, []string{"create", "new", "init", "bootstrap", "provision", "crear"}},
	{TypeModification, []string{"update", "change", "modify", "rename", "scale", "upgrade", "actualizar"}},
	{TypeValidation, []string{"validate", "check", "verify", "lint", "test", "validar"}},
}

// DetermineType picks the episode type from the extracted keywords.
func DetermineType(keywords []string) EpisodeType {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[k] = true
	}
	for _, sig := range typeSignals {
		for _, w := range sig.words {
			if set[w] {
				return sig.episodeType
			}
		}
	}
	return TypeGeneral
}

// DeriveTitle returns the first 60 characters of the enriched prompt,
// collapsed to a single line.
func DeriveTitle(enriched string) string {
	title := strings.Join(strings.Fields(enriched), " ")
	if len(title) > titleLimit {
		title = title[:titleLimit]
	}
	return title
}
