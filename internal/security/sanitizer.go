// Package security classifies commands into tiers, enforces execution policy,
// and scrubs sensitive data from anything the runtime logs or persists.
package security

import (
	"regexp"
	"strings"
)

// redaction pairs a detector with its replacement. Order matters: specific
// token shapes run before the generic key=value patterns so the replacement
// names what was caught.
type redaction struct {
	pattern *regexp.Regexp
	replace string
}

var redactions = []redaction{
	// GitHub token shapes (classic and fine-grained).
	{regexp.MustCompile(`(gh[ps]_[a-zA-Z0-9]{36}|github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59})`), "[REDACTED-GITHUB-TOKEN]"},

	// Signed JWTs, including the approval tokens this runtime mints itself.
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[REDACTED-JWT]"},

	// PEM private key blocks.
	{regexp.MustCompile(`(?s)-----BEGIN[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----.*?-----END[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----`), "[REDACTED-PRIVATE-KEY]"},

	// Service-account JSON fields, as pasted from kubeconfigs and CI logs.
	{regexp.MustCompile(`"private_key":\s*"[^"]+"|"client_email":\s*"[^"]+@[^"]+\.iam\.gserviceaccount\.com"`), "[REDACTED-CLOUD-CREDENTIALS]"},

	// Bearer headers.
	{regexp.MustCompile(`(?i)bearer[[:space:]]+([a-zA-Z0-9_\-\.]+)`), "Bearer [REDACTED]"},

	// Credentials embedded in URLs (git remotes, registry pulls).
	{regexp.MustCompile(`(?i)(https?|ftp)://[^:]+:([^@]+)@`), "${1}://[REDACTED]@"},

	// key=value assignments for API keys and cloud access keys.
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|api[_-]?token)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9_\-]{16,})`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`(?i)(aws[_-]?access[_-]?key[_-]?id|aws[_-]?secret[_-]?access[_-]?key)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9/+=]{16,})`), "${1}=[REDACTED]"},

	// Base64 payloads, but only next to a credential-ish key so ordinary
	// encoded output (manifests, image digests) survives.
	{regexp.MustCompile(`(?i)(auth|token|key|secret|password|credential)[^=:]*[:=]\s*["'` + "`" + `]?([A-Za-z0-9+/]{20,}={0,2})`), "${1}=[REDACTED-BASE64]"},
}

// LogSanitizer removes credential material from log messages, audit records,
// and captured command output before they are written anywhere.
type LogSanitizer struct {
	custom []redaction
}

func NewLogSanitizer() *LogSanitizer {
	return &LogSanitizer{}
}

// AddCustomPattern registers an extra project-specific detector. Matches are
// replaced wholesale.
func (ls *LogSanitizer) AddCustomPattern(pattern *regexp.Regexp) {
	ls.custom = append(ls.custom, redaction{pattern: pattern, replace: "[REDACTED]"})
}

// Sanitize returns message with every known credential shape replaced.
func (ls *LogSanitizer) Sanitize(message string) string {
	for _, r := range redactions {
		message = r.pattern.ReplaceAllString(message, r.replace)
	}
	for _, r := range ls.custom {
		message = r.pattern.ReplaceAllString(message, r.replace)
	}
	return message
}

// SanitizeError is Sanitize over an error's message; nil maps to "".
func (ls *LogSanitizer) SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return ls.Sanitize(err.Error())
}

// SanitizeMap sanitizes keys and values. Values under a credential-ish key
// are dropped outright rather than pattern-matched.
func (ls *LogSanitizer) SanitizeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[ls.Sanitize(k)] = "[REDACTED]"
			continue
		}
		out[ls.Sanitize(k)] = ls.Sanitize(v)
	}
	return out
}

var sensitiveKeyWords = []string{
	"password", "passwd", "pwd",
	"secret", "token", "key",
	"auth", "credential", "cred",
	"private", "api", "bearer",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, w := range sensitiveKeyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
