package clarify

import (
	"sort"
	"strings"
)

// entityOptions lists the candidate names for an entity type from the
// project context document.
func entityOptions(entity EntityType, doc map[string]any) []string {
	switch entity {
	case EntityService:
		return namesFrom(section(doc, "application_services"))
	case EntityNamespace:
		return stringsFrom(sectionValue(doc, "cluster_details", "namespaces"))
	case EntityCluster:
		return namesFrom(section(doc, "cluster_details"))
	case EntityEnvironment:
		return stringsFrom(sectionValue(doc, "project_details", "environments"))
	case EntityResource:
		return namesFrom(section(doc, "infrastructure_topology"))
	}
	return nil
}

// namesSpecific reports whether the prompt already names one of the context's
// entities of this type, which makes the mention unambiguous.
func namesSpecific(promptLower string, entity EntityType, doc map[string]any) bool {
	for _, name := range entityOptions(entity, doc) {
		if name != "" && strings.Contains(promptLower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// currentEnvironment reads the context's declared current environment.
func currentEnvironment(doc map[string]any) string {
	if v, ok := sectionValue(doc, "project_details", "current_environment").(string); ok {
		return strings.ToLower(v)
	}
	return ""
}

// section returns sections.<name> as whatever shape it has.
func section(doc map[string]any, name string) any {
	sections, ok := doc["sections"].(map[string]any)
	if !ok {
		return nil
	}
	return sections[name]
}

// sectionValue returns sections.<name>.<key>.
func sectionValue(doc map[string]any, name, key string) any {
	m, ok := section(doc, name).(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// namesFrom extracts entity names from either a list of {name: ...} records
// or a map keyed by name.
func namesFrom(v any) []string {
	switch val := v.(type) {
	case []any:
		var out []string
		for _, item := range val {
			switch entry := item.(type) {
			case map[string]any:
				if name, ok := entry["name"].(string); ok && name != "" {
					out = append(out, name)
				}
			case string:
				if entry != "" {
					out = append(out, entry)
				}
			}
		}
		return out
	case map[string]any:
		// Keyed-by-name shape; skip scalar metadata keys.
		var out []string
		for name, item := range val {
			if _, ok := item.(map[string]any); ok {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}

// stringsFrom coerces a list value to []string.
func stringsFrom(v any) []string {
	switch val := v.(type) {
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	}
	return nil
}
