package config

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// documentCacheSize bounds the number of parsed policy documents kept in
// memory. The set of documents is small; the bound guards against unbounded
// growth when callers probe arbitrary names.
const documentCacheSize = 32

// Loader reads named YAML policy documents from the config directory.
// Unparseable or missing documents fall back silently to the compiled-in
// defaults, so a broken config file never takes classification down.
type Loader struct {
	dir   string
	cache *lru.Cache[string, map[string]any]
}

// NewLoader creates a document loader rooted at the given directory.
func NewLoader(dir string) *Loader {
	cache, _ := lru.New[string, map[string]any](documentCacheSize)
	return &Loader{dir: dir, cache: cache}
}

// Load returns the parsed document with the given name (without extension).
// Results are cached; the fallback defaults are cached too so repeated reads
// of a broken file stay cheap.
func (l *Loader) Load(name string) map[string]any {
	if doc, ok := l.cache.Get(name); ok {
		return doc
	}

	doc := l.read(name)
	if doc == nil {
		doc = defaultDocument(name)
	}
	l.cache.Add(name, doc)
	return doc
}

// Invalidate drops the cached copy of the named document.
func (l *Loader) Invalidate(name string) {
	l.cache.Remove(name)
}

func (l *Loader) read(name string) map[string]any {
	raw, err := os.ReadFile(filepath.Join(l.dir, name+".yaml"))
	if err != nil {
		return nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

// StringList extracts a list of strings from a document key. Non-string
// elements are skipped.
func StringList(doc map[string]any, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// defaultDocument returns the compiled-in fallback for a named document.
func defaultDocument(name string) map[string]any {
	switch name {
	case "safe_commands":
		return map[string]any{
			"commands": toAny(defaultSafeCommands),
			"prefixes": toAny(defaultSafePrefixes),
		}
	case "blocked_commands":
		return map[string]any{
			"patterns": toAny(defaultBlockedPatterns),
		}
	case "security_tiers":
		return map[string]any{
			"t1_verbs": toAny([]string{"validate", "lint", "check", "fmt"}),
			"t2_verbs": toAny([]string{"plan", "template", "diff"}),
			"t2_flags": toAny([]string{"--dry-run", "--plan-only"}),
		}
	case "thresholds":
		return map[string]any{
			"clarification":           30,
			"read_only_clarification": 50,
			"routing_confidence":      0.5,
			"update_confidence":       0.7,
		}
	default:
		return map[string]any{}
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// defaultSafeCommands is the single-word read-only whitelist.
var defaultSafeCommands = []string{
	"ls", "pwd", "cat", "head", "tail", "grep", "find", "wc",
	"echo", "date", "whoami", "which", "env",
}

// defaultSafePrefixes is the multi-word read-only prefix whitelist.
var defaultSafePrefixes = []string{
	"git status", "git log", "git diff", "git show", "git branch",
	"kubectl get", "kubectl describe", "kubectl logs", "kubectl top",
	"terraform show", "terraform output", "terraform state list",
	"terraform version", "terraform providers",
	"helm list", "helm status", "helm get",
	"flux get", "flux logs",
	"docker ps", "docker images", "docker inspect",
	"gcloud config list", "gcloud projects list",
}

// defaultBlockedPatterns pairs a blocked regex with a remediation suggestion.
var defaultBlockedPatterns = []string{
	`rm\s+-rf\s+/`,
	`kubectl\s+delete`,
	`terraform\s+destroy`,
	`terraform\s+apply`,
	`helm\s+uninstall`,
	`helm\s+delete`,
	`flux\s+delete`,
	`git\s+push\s+.*--force`,
	`gcloud\s+.*\s+delete`,
	`drop\s+database`,
}
