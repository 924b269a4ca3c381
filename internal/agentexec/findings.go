package agentexec

import (
	"fmt"
	"strings"
)

// FindingTier grades a finding's severity.
type FindingTier string

const (
	FindingCritical    FindingTier = "CRITICAL"
	FindingDeviation   FindingTier = "DEVIATION"
	FindingImprovement FindingTier = "IMPROVEMENT"
	FindingPattern     FindingTier = "PATTERN"
)

// Origin records where a finding's evidence came from.
type Origin string

const (
	OriginLocalOnly    Origin = "LOCAL_ONLY"
	OriginLiveOnly     Origin = "LIVE_ONLY"
	OriginDualVerified Origin = "DUAL_VERIFIED"
	OriginConflicting  Origin = "CONFLICTING"
)

// Finding is one item produced by an agent execution.
type Finding struct {
	Tier            FindingTier    `json:"tier"`
	Origin          Origin         `json:"origin"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

// ClassificationResult is the Layer C output.
type ClassificationResult struct {
	Findings             []Finding `json:"findings"`
	ShouldEscalateToLive bool      `json:"should_escalate_to_live"`
	Report               string    `json:"report"`
}

// reportLimit caps the visible prose of a classification report.
const reportLimit = 500

// Classify converts Layer B output into graded findings and the concise
// report. Discrepancies become CRITICAL or DEVIATION findings; extractor
// observations become PATTERN findings.
func Classify(discovery *DiscoveryResult) *ClassificationResult {
	var findings []Finding

	for _, d := range discovery.Discrepancies {
		findings = append(findings, classifyDiscrepancy(d))
	}
	for kind, cfg := range discovery.Configurations {
		if len(cfg) == 0 {
			continue
		}
		findings = append(findings, Finding{
			Tier:        FindingPattern,
			Origin:      OriginLocalOnly,
			Title:       fmt.Sprintf("%s configuration present", kind),
			Description: fmt.Sprintf("parsed %d keys from the %s SSOT", len(cfg), kind),
		})
	}

	result := &ClassificationResult{Findings: findings}
	result.ShouldEscalateToLive = count(findings, FindingCritical) > 0 || count(findings, FindingDeviation) > 0
	result.Report = buildReport(findings)
	return result
}

// classifyDiscrepancy grades one coherence violation. Name mismatches that
// would misroute a deployment are critical; the rest are deviations.
func classifyDiscrepancy(d Discrepancy) Finding {
	tier := FindingDeviation
	if d.Kind == "helm_name_mismatch" {
		tier = FindingCritical
	}
	return Finding{
		Tier:        tier,
		Origin:      OriginLocalOnly,
		Title:       d.Kind,
		Description: d.Description,
		Details:     map[string]any{"file": d.File},
	}
}

// buildReport renders the concise report: every CRITICAL, the first
// DEVIATION plus a count of the rest, a single PATTERN count line, and the
// data-origin summary. IMPROVEMENT findings are stored but not narrated.
func buildReport(findings []Finding) string {
	var lines []string

	for _, f := range findings {
		if f.Tier == FindingCritical {
			lines = append(lines, fmt.Sprintf("CRITICAL: %s — %s", f.Title, f.Description))
		}
	}

	deviations := filter(findings, FindingDeviation)
	if len(deviations) > 0 {
		line := fmt.Sprintf("DEVIATION: %s — %s", deviations[0].Title, deviations[0].Description)
		if len(deviations) > 1 {
			line += fmt.Sprintf(" (+%d more)", len(deviations)-1)
		}
		lines = append(lines, line)
	}

	if n := count(findings, FindingPattern); n > 0 {
		lines = append(lines, fmt.Sprintf("%d pattern observation(s)", n))
	}

	lines = append(lines, originSummary(findings))

	report := strings.Join(lines, "\n")
	if len(report) > reportLimit {
		report = report[:reportLimit-3] + "..."
	}
	return report
}

func originSummary(findings []Finding) string {
	counts := map[Origin]int{}
	for _, f := range findings {
		counts[f.Origin]++
	}
	var parts []string
	for _, o := range []Origin{OriginLocalOnly, OriginLiveOnly, OriginDualVerified, OriginConflicting} {
		if counts[o] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, counts[o]))
		}
	}
	if len(parts) == 0 {
		return "origins: none"
	}
	return "origins: " + strings.Join(parts, ", ")
}

func count(findings []Finding, tier FindingTier) int {
	n := 0
	for _, f := range findings {
		if f.Tier == tier {
			n++
		}
	}
	return n
}

func filter(findings []Finding, tier FindingTier) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Tier == tier {
			out = append(out, f)
		}
	}
	return out
}
