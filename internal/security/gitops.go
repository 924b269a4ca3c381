package security

import (
	"regexp"
	"strings"
)

// GitOps rules privilege dry-run and state-read verbs for the cluster-facing
// CLIs. They run per component, after blocked patterns and before the
// settings scan.

// gitopsSafeVerbs matches explicitly allowed read/inspect invocations.
var gitopsSafeVerbs = []*regexp.Regexp{
	regexp.MustCompile(`^kubectl\s+(get|describe|logs|top|explain|api-resources|api-versions|version|config\s+view)\b`),
	regexp.MustCompile(`^kubectl\s+diff\b`),
	regexp.MustCompile(`^helm\s+(list|ls|status|get|history|show|template|version)\b`),
	regexp.MustCompile(`^flux\s+(get|logs|stats|tree|version|check)\b`),
}

// gitopsForbiddenVerbs pairs a forbidden invocation with its suggestion.
var gitopsForbiddenVerbs = []struct {
	re         *regexp.Regexp
	suggestion string
}{
	{regexp.MustCompile(`^kubectl\s+(delete|drain|cordon|uncordon|taint|replace)\b`),
		"mutate cluster state through the GitOps repository, not kubectl"},
	{regexp.MustCompile(`^kubectl\s+(edit|patch|scale|label|annotate)\b`),
		"edit the manifest in the GitOps repository and let flux reconcile"},
	{regexp.MustCompile(`^helm\s+(uninstall|delete|rollback|upgrade\s+.*--force)\b`),
		"change the HelmRelease in the GitOps repository instead"},
	{regexp.MustCompile(`^flux\s+(delete|suspend|resume)\b`),
		"change the Kustomization/HelmRelease source instead of driving flux directly"},
}

// dryRunFlag matches kubectl/helm dry-run flags, including the =server form.
var dryRunFlag = regexp.MustCompile(`--dry-run(=\S+)?\b`)

var kubectlApply = regexp.MustCompile(`^kubectl\s+apply\b`)

// credentialCLIs marks commands that require cluster or cloud credentials.
var credentialCLIs = []*regexp.Regexp{
	regexp.MustCompile(`^kubectl\b`),
	regexp.MustCompile(`^flux\b`),
	regexp.MustCompile(`^helm\b`),
	regexp.MustCompile(`^gcloud\s+container\b`),
	regexp.MustCompile(`^gcloud\s+sql\b`),
}

// GitOpsVerdict is the per-component result of the GitOps rules.
type GitOpsVerdict int

const (
	// GitOpsNeutral means the rules do not apply or express no opinion.
	GitOpsNeutral GitOpsVerdict = iota
	// GitOpsAllow means an explicitly safe verb matched.
	GitOpsAllow
	// GitOpsDeny means a forbidden verb matched.
	GitOpsDeny
)

// GitOpsResult carries the verdict and remediation. The component tier stays
// with the classifier: an allowed kubectl apply --dry-run still classifies T2
// through the dry-run flag rule.
type GitOpsResult struct {
	Verdict    GitOpsVerdict
	Suggestion string
}

// EvaluateGitOps applies the GitOps rules to a single component. Components
// not starting with kubectl, helm, or flux are neutral.
func EvaluateGitOps(component string) GitOpsResult {
	c := strings.TrimSpace(component)
	if !strings.HasPrefix(c, "kubectl") && !strings.HasPrefix(c, "helm") && !strings.HasPrefix(c, "flux") {
		return GitOpsResult{Verdict: GitOpsNeutral}
	}

	for _, re := range gitopsSafeVerbs {
		if re.MatchString(c) {
			return GitOpsResult{Verdict: GitOpsAllow}
		}
	}
	for _, f := range gitopsForbiddenVerbs {
		if f.re.MatchString(c) {
			return GitOpsResult{Verdict: GitOpsDeny, Suggestion: f.suggestion}
		}
	}

	// apply is permitted only as a server-side simulation.
	if kubectlApply.MatchString(c) {
		if dryRunFlag.MatchString(c) {
			return GitOpsResult{Verdict: GitOpsAllow}
		}
		return GitOpsResult{
			Verdict:    GitOpsDeny,
			Suggestion: "add --dry-run=server to preview, then apply through GitOps reconciliation",
		}
	}

	return GitOpsResult{Verdict: GitOpsNeutral}
}

// RequiresCredentials reports whether the component needs cluster or cloud
// credentials, unless the component itself loads them.
func RequiresCredentials(component string) bool {
	c := strings.TrimSpace(component)
	for _, re := range credentialCLIs {
		if re.MatchString(c) {
			return !loadsCredentials(c)
		}
	}
	return false
}

func loadsCredentials(component string) bool {
	return strings.Contains(component, "get-credentials") ||
		strings.Contains(component, "--kubeconfig") ||
		strings.Contains(component, "KUBECONFIG=")
}
