// Package clarify detects ambiguity in free-text prompts against the project
// context and enriches them with the human's answers. A prompt like "check
// the API" in a project with three services triggers a structured question;
// the selected service is appended to the prompt before routing.
package clarify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/gaiaops/gaia/internal/asker"
)

// EntityType is one category of ambiguity the analyzer can detect.
type EntityType string

const (
	EntityService     EntityType = "service"
	EntityNamespace   EntityType = "namespace"
	EntityCluster     EntityType = "cluster"
	EntityEnvironment EntityType = "environment"
	EntityResource    EntityType = "resource"
)

// Detection thresholds.
const (
	DefaultThreshold  = 30
	ReadOnlyThreshold = 50
)

// AllOption is the synthetic "select everything" choice offered when three
// or more real options exist.
const AllOption = "Todos / All"

// ambiguityPattern pairs a word-boundary signal with its entity type and
// weight.
type ambiguityPattern struct {
	entity  EntityType
	weight  int
	pattern *regexp.Regexp
}

// envMismatchWeight applies when the prompt names an environment other than
// the context's current one.
const envMismatchWeight = 90

var ambiguityPatterns = []ambiguityPattern{
	{EntityService, 80, regexp.MustCompile(`(?i)\b(the api|the service|the app|el servicio|la api|el api)\b`)},
	{EntityNamespace, 60, regexp.MustCompile(`(?i)\b(namespace|the ns|el namespace)\b`)},
	{EntityCluster, 60, regexp.MustCompile(`(?i)\b(the cluster|el cluster)\b`)},
	{EntityResource, 70, regexp.MustCompile(`(?i)\b(redis instance|the database|the bucket|la base de datos|the queue|the topic)\b`)},
}

// environmentWords maps environment mentions to their canonical name.
var environmentWords = map[string]string{
	"prod":        "production",
	"production":  "production",
	"produccion":  "production",
	"staging":     "staging",
	"stage":       "staging",
	"dev":         "development",
	"development": "development",
	"desarrollo":  "development",
}

// readOnlyVerbs elevate the gate threshold: read-only requests rarely need
// clarification.
var readOnlyVerbs = map[string]bool{
	"show": true, "get": true, "list": true, "view": true,
	"ver": true, "mostrar": true,
}

var wordSplit = regexp.MustCompile(`[a-zA-Z]+`)

// detection is one ambiguity hit.
type detection struct {
	entity EntityType
	weight int
}

// Result reports what clarification produced.
type Result struct {
	EnrichedPrompt string
	Occurred       bool
	Score          int
	Answers        map[EntityType]string
}

// Engine analyzes prompts and drives the questioner.
type Engine struct {
	asker asker.Asker
}

// NewEngine creates a clarification engine backed by the given questioner.
func NewEngine(a asker.Asker) *Engine {
	return &Engine{asker: a}
}

// Clarify runs the full detect-score-ask-enrich pipeline. The returned
// Occurred flag reports whether any question was actually asked.
func (e *Engine) Clarify(prompt string, contextDoc map[string]any, threshold int) (*Result, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	result := &Result{EnrichedPrompt: prompt}

	trimmed := strings.TrimSpace(prompt)
	if strings.HasPrefix(trimmed, "/") {
		return result, nil
	}
	if firstWord(trimmed) != "" && readOnlyVerbs[firstWord(trimmed)] && threshold < ReadOnlyThreshold {
		threshold = ReadOnlyThreshold
	}

	detections := analyze(trimmed, contextDoc)
	result.Score = score(detections)
	if result.Score <= threshold {
		return result, nil
	}

	questions, entities := buildQuestions(detections, contextDoc)
	if len(questions) == 0 {
		return result, nil
	}

	answers, err := e.asker.Ask(questions)
	if err != nil {
		return nil, fmt.Errorf("clarification failed: %w", err)
	}

	result.Answers = map[EntityType]string{}
	var parts []string
	for i, entity := range entities {
		raw, ok := answers[fmt.Sprintf("question_%d", i+1)].(string)
		if !ok || raw == "" {
			continue
		}
		clean := CleanAnswer(raw)
		result.Answers[entity] = clean
		parts = append(parts, fmt.Sprintf("%s: %s", entity, clean))
	}
	if len(parts) == 0 {
		return result, nil
	}
	result.EnrichedPrompt = fmt.Sprintf("%s\n\n[Clarification - %s]", prompt, strings.Join(parts, ", "))
	result.Occurred = true
	return result, nil
}

// analyze classifies which entity types the prompt mentions ambiguously. An
// entity already named specifically in the prompt is not ambiguous.
func analyze(prompt string, contextDoc map[string]any) []detection {
	var out []detection
	lower := strings.ToLower(prompt)

	for _, p := range ambiguityPatterns {
		if !p.pattern.MatchString(prompt) {
			continue
		}
		if namesSpecific(lower, p.entity, contextDoc) {
			continue
		}
		out = append(out, detection{entity: p.entity, weight: p.weight})
	}

	if env := mentionedEnvironment(lower); env != "" {
		current := currentEnvironment(contextDoc)
		if current != "" && env != current {
			out = append(out, detection{entity: EntityEnvironment, weight: envMismatchWeight})
		}
	}
	return out
}

// score is the average of the top-3 detection weights.
func score(detections []detection) int {
	if len(detections) == 0 {
		return 0
	}
	weights := make([]int, len(detections))
	for i, d := range detections {
		weights[i] = d.weight
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weights)))
	if len(weights) > 3 {
		weights = weights[:3]
	}
	sum := 0
	for _, w := range weights {
		sum += w
	}
	return sum / len(weights)
}

// buildQuestions turns detections into questions with options drawn from the
// context document. Entities with one or zero options are skipped.
func buildQuestions(detections []detection, contextDoc map[string]any) ([]asker.Question, []EntityType) {
	var questions []asker.Question
	var entities []EntityType
	for _, d := range detections {
		options := entityOptions(d.entity, contextDoc)
		if len(options) <= 1 {
			continue
		}
		opts := make([]asker.Option, 0, len(options)+1)
		for _, o := range options {
			opts = append(opts, asker.Option{Label: o})
		}
		if len(options) >= 3 {
			opts = append(opts, asker.Option{Label: AllOption, Description: "apply to every option"})
		}
		questions = append(questions, asker.Question{
			Question: questionText(d.entity),
			Header:   headerText(d.entity),
			Options:  opts,
		})
		entities = append(entities, d.entity)
	}
	return questions, entities
}

func questionText(entity EntityType) string {
	switch entity {
	case EntityService:
		return "Which service do you mean?"
	case EntityNamespace:
		return "Which namespace?"
	case EntityCluster:
		return "Which cluster?"
	case EntityEnvironment:
		return "Which environment is this for?"
	case EntityResource:
		return "Which resource do you mean?"
	}
	return "Please clarify"
}

func headerText(entity EntityType) string {
	switch entity {
	case EntityService:
		return "Service"
	case EntityNamespace:
		return "Namespace"
	case EntityCluster:
		return "Cluster"
	case EntityEnvironment:
		return "Environment"
	case EntityResource:
		return "Resource"
	}
	return "Clarification"
}

// CleanAnswer strips emoji prefixes from a selected label and collapses the
// "Todos / All" sentinel to "all".
func CleanAnswer(label string) string {
	if label == AllOption {
		return "all"
	}
	return strings.TrimLeftFunc(label, func(r rune) bool {
		return r > unicode.MaxASCII || unicode.IsSpace(r)
	})
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// mentionedEnvironment returns the canonical environment the prompt names,
// or empty.
func mentionedEnvironment(lower string) string {
	for _, w := range wordSplit.FindAllString(lower, -1) {
		if env, ok := environmentWords[w]; ok {
			return env
		}
	}
	return ""
}
