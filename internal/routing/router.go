// Package routing picks the sub-agent for an enriched prompt. Scoring is
// keyword-based over each agent's declared domains, optionally blended with
// an embedding similarity when a scorer is plugged in.
package routing

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gaiaops/gaia/internal/security"
)

// AgentSpec declares one routable sub-agent.
type AgentSpec struct {
	Name                    string          `json:"name" yaml:"name"`
	Description             string          `json:"description,omitempty" yaml:"description,omitempty"`
	Domains                 []string        `json:"domains" yaml:"domains"`
	SecurityTiersSupported  []security.Tier `json:"security_tiers_supported" yaml:"security_tiers_supported"`
	RequiredContextSections []string        `json:"required_context_sections" yaml:"required_context_sections"`
	Skills                  []string        `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// SupportsTier reports whether the agent may run commands of the given tier.
func (a AgentSpec) SupportsTier(tier security.Tier) bool {
	for _, t := range a.SecurityTiersSupported {
		if t == tier {
			return true
		}
	}
	return false
}

// MinConfidence is the routing score floor; below it the routing phase guard
// fails.
const MinConfidence = 0.5

// EmbeddingScorer is the optional semantic similarity collaborator. It
// returns a score in [0,1] for the prompt against an agent description.
type EmbeddingScorer interface {
	Similarity(prompt, description string) (float64, error)
}

// Decision is the routing outcome.
type Decision struct {
	Agent      string
	Confidence float64
}

// Router scores prompts against the declared agents.
type Router struct {
	agents   []AgentSpec
	embedder EmbeddingScorer
}

// NewRouter creates a router over the agent roster. The embedder may be nil.
func NewRouter(agents []AgentSpec, embedder EmbeddingScorer) *Router {
	return &Router{agents: agents, embedder: embedder}
}

// Agents returns the declared roster.
func (r *Router) Agents() []AgentSpec { return r.agents }

// Lookup returns the spec for a named agent.
func (r *Router) Lookup(name string) (AgentSpec, bool) {
	for _, a := range r.agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentSpec{}, false
}

var routeWords = regexp.MustCompile(`[a-z0-9-]+`)

// Route picks the best agent for the enriched prompt. The returned
// confidence must be checked against MinConfidence by the caller's phase
// guard.
func (r *Router) Route(enrichedPrompt string) Decision {
	words := map[string]bool{}
	for _, w := range routeWords.FindAllString(strings.ToLower(enrichedPrompt), -1) {
		words[w] = true
	}

	best := Decision{}
	// Stable order so ties resolve deterministically.
	agents := make([]AgentSpec, len(r.agents))
	copy(agents, r.agents)
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })

	for _, agent := range agents {
		score := r.scoreAgent(agent, enrichedPrompt, words)
		if score > best.Confidence {
			best = Decision{Agent: agent.Name, Confidence: score}
		}
	}
	return best
}

// scoreAgent blends the keyword hit ratio with the optional embedding
// similarity. Keywords dominate; the embedding refines.
func (r *Router) scoreAgent(agent AgentSpec, prompt string, words map[string]bool) float64 {
	if len(agent.Domains) == 0 {
		return 0
	}
	hits := 0
	for _, domain := range agent.Domains {
		if domainMatches(domain, words, prompt) {
			hits++
		}
	}
	keyword := float64(hits) / float64(len(agent.Domains))
	// Any hit at all clears the confidence floor; the ratio ranks beyond it.
	if hits > 0 && keyword < MinConfidence {
		keyword = MinConfidence + (keyword * (1 - MinConfidence))
	}

	if r.embedder == nil || agent.Description == "" {
		return keyword
	}
	semantic, err := r.embedder.Similarity(prompt, agent.Description)
	if err != nil {
		return keyword
	}
	return 0.7*keyword + 0.3*semantic
}

// domainMatches accepts single-word domains as token matches and multi-word
// domains as substring matches.
func domainMatches(domain string, words map[string]bool, prompt string) bool {
	d := strings.ToLower(domain)
	if strings.ContainsAny(d, " -") && strings.Contains(strings.ToLower(prompt), d) {
		return true
	}
	return words[d]
}
