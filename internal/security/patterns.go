package security

import (
	"regexp"
	"strings"

	"github.com/gaiaops/gaia/internal/config"
)

// BlockedMatch describes a blocked-pattern hit and its remediation.
type BlockedMatch struct {
	Pattern    string
	Suggestion string
}

// BlockedSet holds the compiled blocked-command patterns.
type BlockedSet struct {
	patterns []*regexp.Regexp
	raw      []string
}

// NewBlockedSet compiles the blocked_commands policy document. Patterns that
// fail to compile are skipped.
func NewBlockedSet(loader *config.Loader) *BlockedSet {
	raw := config.StringList(loader.Load("blocked_commands"), "patterns")
	bs := &BlockedSet{}
	for _, p := range raw {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			continue
		}
		bs.patterns = append(bs.patterns, re)
		bs.raw = append(bs.raw, p)
	}
	return bs
}

// Match returns the first blocked pattern matching the command, or nil.
func (bs *BlockedSet) Match(command string) *BlockedMatch {
	for i, re := range bs.patterns {
		if re.MatchString(command) {
			return &BlockedMatch{
				Pattern:    bs.raw[i],
				Suggestion: suggestionFor(command),
			}
		}
	}
	return nil
}

// blockedSuggestions maps command fragments to remediation suggestions shown
// on a deny.
var blockedSuggestions = []struct {
	fragment   string
	suggestion string
}{
	{"kubectl delete", "use kubectl get to inspect state and let GitOps reconciliation remove resources"},
	{"terraform destroy", "remove the resource from code and use terraform plan to review the change"},
	{"terraform apply", "use terraform plan"},
	{"helm uninstall", "remove the HelmRelease from the GitOps repository instead"},
	{"helm delete", "remove the HelmRelease from the GitOps repository instead"},
	{"flux delete", "remove the manifest from the GitOps repository instead"},
	{"--force", "use --force-with-lease, or avoid force-pushing shared branches"},
	{"rm -rf", "delete specific paths explicitly, never a recursive root removal"},
}

func suggestionFor(command string) string {
	lower := strings.ToLower(command)
	for _, s := range blockedSuggestions {
		if strings.Contains(lower, s.fragment) {
			return s.suggestion
		}
	}
	return ""
}

// patternKind distinguishes how a settings pattern is interpreted.
type patternKind int

const (
	kindLiteral patternKind = iota
	kindGlob
	kindRegex
)

// Matcher matches a command against one settings pattern. The kind is
// detected from the pattern text: a leading '^' or a regex metacharacter
// beyond glob syntax means regex, '*' or '?' means glob, anything else is a
// literal prefix.
type Matcher struct {
	raw  string
	kind patternKind
	re   *regexp.Regexp
}

// CompileMatcher builds a Matcher for a settings pattern. Invalid regex
// patterns degrade to literal-prefix matching.
func CompileMatcher(pattern string) Matcher {
	kind := detectKind(pattern)
	m := Matcher{raw: pattern, kind: kind}
	switch kind {
	case kindRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			m.kind = kindLiteral
			return m
		}
		m.re = re
	case kindGlob:
		m.re = globToRegexp(pattern)
	}
	return m
}

// Match reports whether the command matches this pattern.
func (m Matcher) Match(command string) bool {
	switch m.kind {
	case kindRegex, kindGlob:
		return m.re.MatchString(command)
	default:
		return strings.HasPrefix(command, m.raw)
	}
}

// Pattern returns the original pattern text.
func (m Matcher) Pattern() string { return m.raw }

func detectKind(pattern string) patternKind {
	if strings.HasPrefix(pattern, "^") || strings.ContainsAny(pattern, `\[]()+|$`) {
		return kindRegex
	}
	if strings.ContainsAny(pattern, "*?") {
		return kindGlob
	}
	return kindLiteral
}

// globToRegexp converts a glob pattern ('*' and '?') into an anchored regexp.
func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// CompileMatchers builds matchers for a pattern list.
func CompileMatchers(patterns []string) []Matcher {
	out := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, CompileMatcher(p))
	}
	return out
}

// MatchAny reports whether any matcher matches the command and returns the
// matching pattern.
func MatchAny(matchers []Matcher, command string) (string, bool) {
	for _, m := range matchers {
		if m.Match(command) {
			return m.Pattern(), true
		}
	}
	return "", false
}
