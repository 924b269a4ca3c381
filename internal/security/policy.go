package security

import (
	"fmt"
	"strings"

	"github.com/gaiaops/gaia/internal/shellparse"
)

// Decision is the policy outcome for one tool invocation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionAsk   Decision = "ask"
	DecisionDeny  Decision = "deny"
)

// forbiddenFooters are attribution footers that must never reach a command
// (typically a git commit). Matching is case-insensitive.
var forbiddenFooters = []string{
	"generated with [claude",
	"co-authored-by: claude",
	"generated by ai",
}

// Settings holds the allow/ask/deny pattern lists scanned after the
// per-component rules. Patterns may be literal prefixes, globs, or regexes.
type Settings struct {
	Deny  []Matcher
	Ask   []Matcher
	Allow []Matcher
}

// NewSettings compiles the three pattern lists.
func NewSettings(deny, ask, allow []string) Settings {
	return Settings{
		Deny:  CompileMatchers(deny),
		Ask:   CompileMatchers(ask),
		Allow: CompileMatchers(allow),
	}
}

// ComponentEvaluation is the verdict for one decomposed component.
type ComponentEvaluation struct {
	Command             string `json:"command"`
	Tier                string `json:"tier"`
	Blocked             bool   `json:"blocked,omitempty"`
	GitOpsDenied        bool   `json:"gitops_denied,omitempty"`
	RequiresCredentials bool   `json:"requires_credentials,omitempty"`
	Suggestion          string `json:"suggestion,omitempty"`
}

// Evaluation is the policy engine's full answer for a tool invocation.
type Evaluation struct {
	Decision            Decision              `json:"decision"`
	Tier                Tier                  `json:"-"`
	TierLabel           string                `json:"tier"`
	Reason              string                `json:"reason"`
	Suggestions         []string              `json:"suggestions,omitempty"`
	RequiresCredentials bool                  `json:"requires_credentials,omitempty"`
	Components          []ComponentEvaluation `json:"components,omitempty"`
}

// DecisionSink receives one record per policy evaluation. Sink failures are
// swallowed; audit must never break the decision path.
type DecisionSink interface {
	RecordDecision(tool, command, agent string, decision Decision, tier Tier, reason string)
}

// Engine combines the classifier, blocked patterns, GitOps rules, and the
// settings lists into a single allow/ask/deny decision.
type Engine struct {
	classifier *Classifier
	settings   Settings
	sink       DecisionSink
}

// NewEngine creates a policy engine. sink may be nil.
func NewEngine(classifier *Classifier, settings Settings, sink DecisionSink) *Engine {
	return &Engine{classifier: classifier, settings: settings, sink: sink}
}

// Evaluate decides whether the given tool invocation may proceed.
// agent is the dispatching sub-agent name, empty for direct invocations.
func (e *Engine) Evaluate(tool, command, agent string) Evaluation {
	ev := e.evaluate(command)
	if e.sink != nil {
		e.sink.RecordDecision(tool, command, agent, ev.Decision, ev.Tier, ev.Reason)
	}
	return ev
}

func (e *Engine) evaluate(command string) Evaluation {
	if footer := matchFooter(command); footer != "" {
		return finish(Evaluation{
			Decision: DecisionDeny,
			Tier:     TierT3,
			Reason:   fmt.Sprintf("forbidden attribution footer %q", footer),
		})
	}

	components := shellparse.Split(command)
	if len(components) == 0 {
		return finish(Evaluation{
			Decision: DecisionDeny,
			Tier:     TierT3,
			Reason:   "empty command",
		})
	}

	ev := Evaluation{Tier: TierT0}
	denied := false
	for _, component := range components {
		ce := ComponentEvaluation{Command: component}
		tier := e.classifier.Classify(component)
		ce.Tier = tier.String()
		ev.Tier = MaxTier(ev.Tier, tier)

		if m := e.classifier.blocked.Match(component); m != nil {
			ce.Blocked = true
			ce.Suggestion = m.Suggestion
			denied = true
			ev.Reason = fmt.Sprintf("blocked pattern %q matched %q", m.Pattern, component)
			if m.Suggestion != "" {
				ev.Suggestions = append(ev.Suggestions, m.Suggestion)
			}
		} else if g := EvaluateGitOps(component); g.Verdict == GitOpsDeny {
			ce.GitOpsDenied = true
			ce.Suggestion = g.Suggestion
			denied = true
			ev.Reason = fmt.Sprintf("gitops rule forbids %q", component)
			if g.Suggestion != "" {
				ev.Suggestions = append(ev.Suggestions, g.Suggestion)
			}
		}

		if RequiresCredentials(component) {
			ce.RequiresCredentials = true
			ev.RequiresCredentials = true
		}

		ev.Components = append(ev.Components, ce)
	}

	if denied {
		ev.Decision = DecisionDeny
		return finish(ev)
	}

	ev.Decision, ev.Reason = e.scanSettings(command, ev.Tier)
	return finish(ev)
}

// scanSettings composes the final decision: deny patterns first, then ask
// patterns (T3 always asks), then allow patterns, then default-deny.
func (e *Engine) scanSettings(command string, tier Tier) (Decision, string) {
	if p, ok := MatchAny(e.settings.Deny, command); ok {
		return DecisionDeny, fmt.Sprintf("deny pattern %q", p)
	}
	if p, ok := MatchAny(e.settings.Ask, command); ok {
		return DecisionAsk, fmt.Sprintf("ask pattern %q", p)
	}
	if tier == TierT3 {
		return DecisionAsk, "state-mutating operation requires approval"
	}
	if p, ok := MatchAny(e.settings.Allow, command); ok {
		return DecisionAllow, fmt.Sprintf("allow pattern %q", p)
	}
	if tier <= TierT2 {
		return DecisionAllow, fmt.Sprintf("%s operation permitted", tier)
	}
	return DecisionDeny, "no matching policy; default deny"
}

func matchFooter(command string) string {
	lower := strings.ToLower(command)
	for _, f := range forbiddenFooters {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}

func finish(ev Evaluation) Evaluation {
	ev.TierLabel = ev.Tier.String()
	return ev
}
