package security

import "strings"

// redactedKeyFragments mark parameter keys whose values are never persisted.
var redactedKeyFragments = []string{
	"password", "secret", "token", "key", "credential", "auth",
}

// maxParamValueLen is the persisted length cap for string parameter values.
const maxParamValueLen = 500

// truncationMarker is appended to truncated parameter values.
const truncationMarker = "...[TRUNCATED]"

// SanitizeParams returns a copy of the tool parameters safe for journaling:
// sensitive keys are redacted, long strings truncated, and nested maps
// handled recursively. Scalar values pass through unchanged.
func SanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isRedactedKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = truncateValue(val)
		case map[string]any:
			out[k] = SanitizeParams(val)
		default:
			out[k] = v
		}
	}
	return out
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range redactedKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func truncateValue(s string) string {
	if len(s) <= maxParamValueLen {
		return s
	}
	return s[:maxParamValueLen] + truncationMarker
}
