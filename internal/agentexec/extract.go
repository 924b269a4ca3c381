package agentexec

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// rawPreviewLen caps the _raw excerpt kept for unknown file kinds.
const rawPreviewLen = 500

var (
	localsStart     = regexp.MustCompile(`^\s*locals\s*\{`)
	variableDecl    = regexp.MustCompile(`^\s*variable\s+"([^"]+)"`)
	resourceDecl    = regexp.MustCompile(`^\s*resource\s+"([^"]+)"\s+"([^"]+)"`)
	localAssign     = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?)\s*$`)
	shallowYAMLLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*):\s*(.+?)\s*$`)
)

// extractConfiguration parses one SSOT file with the lightweight extractor
// for its kind. The extractors are line-oriented on purpose: Layer B needs
// enough structure to cross-check names, not a full parse.
func extractConfiguration(kind FileKind, path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch kind {
	case KindTerraform:
		return extractTerraform(string(raw)), nil
	case KindKustomization, KindHelmRelease, KindHelmValues, KindGithubWorkflow:
		return extractShallowYAML(string(raw)), nil
	default:
		return map[string]any{"_raw": rawPreview(string(raw))}, nil
	}
}

// extractTerraform pulls the locals block, variable names, and resource
// addresses out of HCL text.
func extractTerraform(src string) map[string]any {
	locals := map[string]any{}
	var variables []string
	var resources []string

	inLocals := false
	depth := 0
	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		line := scanner.Text()

		if inLocals {
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth <= 0 {
				inLocals = false
				continue
			}
			if m := localAssign.FindStringSubmatch(line); m != nil && depth == 1 {
				locals[m[1]] = strings.Trim(m[2], `"`)
			}
			continue
		}

		switch {
		case localsStart.MatchString(line):
			inLocals = true
			depth = 1
		case variableDecl.MatchString(line):
			variables = append(variables, variableDecl.FindStringSubmatch(line)[1])
		case resourceDecl.MatchString(line):
			m := resourceDecl.FindStringSubmatch(line)
			resources = append(resources, m[1]+"."+m[2])
		}
	}

	out := map[string]any{}
	if len(locals) > 0 {
		out["locals"] = locals
	}
	if len(variables) > 0 {
		out["variables"] = variables
	}
	if len(resources) > 0 {
		out["resources"] = resources
	}
	return out
}

// extractShallowYAML keeps top-level key: value lines, following one level
// of indentation under spec: for HelmRelease-shaped documents.
func extractShallowYAML(src string) map[string]any {
	out := map[string]any{}
	scanner := bufio.NewScanner(strings.NewReader(src))
	inSpec := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		if m := shallowYAMLLine.FindStringSubmatch(line); m != nil {
			inSpec = false
			out[m[1]] = strings.Trim(m[2], `"'`)
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "spec:" && !strings.HasPrefix(line, " ") {
			inSpec = true
			continue
		}
		if inSpec && strings.HasPrefix(line, "  ") {
			if m := shallowYAMLLine.FindStringSubmatch(trimmed); m != nil {
				if _, exists := out[m[1]]; !exists {
					out[m[1]] = strings.Trim(m[2], `"'`)
				}
			}
		}
	}
	return out
}

func rawPreview(src string) string {
	if len(src) > rawPreviewLen {
		return src[:rawPreviewLen]
	}
	return src
}
