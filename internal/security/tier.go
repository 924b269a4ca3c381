package security

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gaiaops/gaia/internal/config"
)

// Tier classifies an operation's blast radius.
type Tier int

const (
	// TierT0 is read-only.
	TierT0 Tier = iota
	// TierT1 is local validation with no network side effects.
	TierT1
	// TierT2 is simulation: remote read or dry-run.
	TierT2
	// TierT3 is state-mutating.
	TierT3
)

// String returns the canonical tier label ("T0".."T3").
func (t Tier) String() string {
	switch t {
	case TierT0:
		return "T0"
	case TierT1:
		return "T1"
	case TierT2:
		return "T2"
	case TierT3:
		return "T3"
	}
	return fmt.Sprintf("T?(%d)", int(t))
}

// MaxTier returns the higher of two tiers. The effective tier of a compound
// command is the maximum tier of its components.
func MaxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// classifierCacheSize bounds the classification LRU cache.
const classifierCacheSize = 512

// fastPathTiers short-circuits classification for ultra-common commands.
var fastPathTiers = map[string]Tier{
	"ls":          TierT0,
	"pwd":         TierT0,
	"git status":  TierT0,
	"kubectl get": TierT0,
}

// Classifier maps a single, already-decomposed command to a tier.
type Classifier struct {
	safeCommands map[string]bool
	safePrefixes []string
	t1Verbs      map[string]bool
	t2Verbs      map[string]bool
	t2Flags      []string
	blocked      *BlockedSet
	cache        *lru.Cache[string, Tier]
}

// NewClassifier builds a classifier from the safe_commands, security_tiers,
// and blocked_commands policy documents.
func NewClassifier(loader *config.Loader) *Classifier {
	safeDoc := loader.Load("safe_commands")
	tierDoc := loader.Load("security_tiers")

	c := &Classifier{
		safeCommands: toSet(config.StringList(safeDoc, "commands")),
		safePrefixes: config.StringList(safeDoc, "prefixes"),
		t1Verbs:      toSet(config.StringList(tierDoc, "t1_verbs")),
		t2Verbs:      toSet(config.StringList(tierDoc, "t2_verbs")),
		t2Flags:      config.StringList(tierDoc, "t2_flags"),
		blocked:      NewBlockedSet(loader),
	}
	c.cache, _ = lru.New[string, Tier](classifierCacheSize)
	return c
}

// Classify returns the tier of a single command. Unknown commands fail closed
// to T3. Results are cached by (command, blocked-hit) key.
func (c *Classifier) Classify(command string) Tier {
	command = strings.TrimSpace(command)
	if command == "" {
		return TierT3
	}

	hasBlocked := c.blocked.Match(command) != nil
	key := fmt.Sprintf("%t|%s", hasBlocked, command)
	if tier, ok := c.cache.Get(key); ok {
		return tier
	}

	tier := c.classify(command, hasBlocked)
	c.cache.Add(key, tier)
	return tier
}

func (c *Classifier) classify(command string, hasBlocked bool) Tier {
	if hasBlocked {
		return TierT3
	}

	if tier, ok := fastPathTiers[command]; ok {
		return tier
	}
	words := strings.Fields(command)
	if len(words) >= 2 {
		if tier, ok := fastPathTiers[words[0]+" "+words[1]]; ok && len(words) <= 3 {
			return tier
		}
	}

	for _, flag := range c.t2Flags {
		if containsWordPrefix(words, flag) {
			return TierT2
		}
	}
	for _, w := range words {
		if c.t2Verbs[w] {
			return TierT2
		}
	}
	for _, w := range words {
		if c.t1Verbs[w] {
			return TierT1
		}
	}

	if len(words) > 0 && c.safeCommands[words[0]] {
		return TierT0
	}
	for _, prefix := range c.safePrefixes {
		if command == prefix || strings.HasPrefix(command, prefix+" ") {
			return TierT0
		}
	}

	// Default-deny for unknown commands.
	return TierT3
}

// containsWordPrefix reports whether any word equals flag or starts with
// flag followed by '=' (e.g. --dry-run=server).
func containsWordPrefix(words []string, flag string) bool {
	for _, w := range words {
		if w == flag || strings.HasPrefix(w, flag+"=") {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
