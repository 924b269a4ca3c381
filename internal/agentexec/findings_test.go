package agentexec

import (
	"strings"
	"testing"
)

func TestClassifyEscalatesOnCritical(t *testing.T) {
	discovery := &DiscoveryResult{
		Discrepancies: []Discrepancy{
			{Kind: "helm_name_mismatch", Description: "release tcm-api vs values other-api"},
		},
		Configurations: map[FileKind]map[string]any{
			KindTerraform: {"variables": []string{"x"}},
		},
	}

	res := Classify(discovery)
	if !res.ShouldEscalateToLive {
		t.Error("critical finding did not escalate")
	}
	if count(res.Findings, FindingCritical) != 1 {
		t.Errorf("findings = %+v", res.Findings)
	}
	if !strings.Contains(res.Report, "CRITICAL: helm_name_mismatch") {
		t.Errorf("report = %q", res.Report)
	}
}

func TestClassifyQuietTreeDoesNotEscalate(t *testing.T) {
	discovery := &DiscoveryResult{
		InternalCoherence: true,
		Configurations: map[FileKind]map[string]any{
			KindTerraform:  {"variables": []string{"x"}},
			KindHelmValues: {"name": "tcm-api"},
		},
	}

	res := Classify(discovery)
	if res.ShouldEscalateToLive {
		t.Error("pattern-only result escalated")
	}
	if !strings.Contains(res.Report, "2 pattern observation(s)") {
		t.Errorf("report = %q", res.Report)
	}
}

func TestReportCompressesDeviations(t *testing.T) {
	findings := []Finding{
		{Tier: FindingDeviation, Origin: OriginLocalOnly, Title: "first", Description: "d1"},
		{Tier: FindingDeviation, Origin: OriginLocalOnly, Title: "second", Description: "d2"},
		{Tier: FindingDeviation, Origin: OriginLocalOnly, Title: "third", Description: "d3"},
		{Tier: FindingImprovement, Origin: OriginLocalOnly, Title: "tidy", Description: "could be nicer"},
	}

	report := buildReport(findings)
	if !strings.Contains(report, "DEVIATION: first") {
		t.Errorf("report = %q", report)
	}
	if !strings.Contains(report, "(+2 more)") {
		t.Errorf("report does not count remaining deviations: %q", report)
	}
	if strings.Contains(report, "second") || strings.Contains(report, "tidy") {
		t.Errorf("report narrates suppressed findings: %q", report)
	}
	if !strings.Contains(report, "LOCAL_ONLY=4") {
		t.Errorf("origin summary missing: %q", report)
	}
}

func TestReportCapsAtLimit(t *testing.T) {
	long := strings.Repeat("x", 600)
	findings := []Finding{
		{Tier: FindingCritical, Origin: OriginLocalOnly, Title: "big", Description: long},
	}
	report := buildReport(findings)
	if len(report) > reportLimit {
		t.Errorf("report length = %d, exceeds %d", len(report), reportLimit)
	}
	if !strings.HasSuffix(report, "...") {
		t.Errorf("truncated report not marked: %q", report[len(report)-10:])
	}
}
