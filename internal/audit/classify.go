package audit

import (
	"regexp"
	"strings"
)

// commandTypePatterns maps each operation category to its patterns.
// First match wins; compiled once at startup.
var commandTypePatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{"plan", regexp.MustCompile(`(?i)\b(terraform\s+plan|helm\s+template|kubectl\s+diff|--dry-run)\b`)},
	{"apply", regexp.MustCompile(`(?i)\b(terraform\s+apply|kubectl\s+apply|helm\s+(install|upgrade)|flux\s+reconcile)\b`)},
	{"delete", regexp.MustCompile(`(?i)\b(delete|destroy|uninstall|rm)\b`)},
	{"create", regexp.MustCompile(`(?i)\b(create|init|new|add)\b`)},
	{"update", regexp.MustCompile(`(?i)\b(update|patch|edit|set|scale)\b`)},
	{"read", regexp.MustCompile(`(?i)^\s*(ls|cat|head|tail|pwd|grep|find)\b|\b(get|describe|show|list|status|logs|output)\b`)},
	{"git", regexp.MustCompile(`(?i)^\s*git\b`)},
	{"cloud_cli", regexp.MustCompile(`(?i)^\s*(gcloud|aws|az)\b`)},
}

// ClassifyCommandType maps a command to one of the operation categories
// (read, create, delete, update, plan, apply, git, cloud_cli, other).
func ClassifyCommandType(command string) string {
	c := strings.TrimSpace(command)
	if c == "" {
		return "other"
	}
	// git and cloud CLIs are categorized by their binary before verb matching
	// would misfile them (e.g. "git status" is git, not read).
	if strings.HasPrefix(c, "git ") || c == "git" {
		return "git"
	}
	for _, b := range []string{"gcloud", "aws", "az"} {
		if strings.HasPrefix(c, b+" ") || c == b {
			return "cloud_cli"
		}
	}
	for _, p := range commandTypePatterns {
		if p.re.MatchString(c) {
			return p.category
		}
	}
	return "other"
}
