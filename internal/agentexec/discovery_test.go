package agentexec

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func infraTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.tf"), `
locals {
  project = "gaia-demo"
  region  = "europe-west1"
}

variable "cluster_name" {}
variable "node_count" {}

resource "google_container_cluster" "primary" {
  name = local.project
}
`)
	writeFile(t, filepath.Join(root, "apps", "kustomization.yaml"), "namespace: apps\nresources:\n  - release.yaml\n")
	writeFile(t, filepath.Join(root, "apps", "helmrelease-tcm.yaml"), "name: tcm-api\nnamespace: apps\nspec:\n  releaseName: tcm-api\n")
	writeFile(t, filepath.Join(root, "apps", "values.yaml"), "name: tcm-api\nreplicas: \"2\"\n")
	writeFile(t, filepath.Join(root, "Dockerfile"), "FROM alpine\n")
	writeFile(t, filepath.Join(root, "a", "b", "c", "d", "deep.tf"), "variable \"too_deep\" {}\n")
	return root
}

func TestDiscoverCategorizesAndBoundsDepth(t *testing.T) {
	root := infraTree(t)

	res, err := Discover([]string{root}, 3)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	kinds := map[FileKind]int{}
	for _, f := range res.DiscoveredFiles {
		kinds[f.Kind]++
		if filepath.Base(f.Path) == "deep.tf" {
			t.Error("walk exceeded the depth bound")
		}
	}
	if kinds[KindTerraform] != 1 {
		t.Errorf("terraform files = %d, want 1", kinds[KindTerraform])
	}
	if kinds[KindKustomization] != 1 || kinds[KindHelmRelease] != 1 || kinds[KindHelmValues] != 1 || kinds[KindDocker] != 1 {
		t.Errorf("kind counts = %v", kinds)
	}
}

func TestDiscoverExtractsTerraform(t *testing.T) {
	root := infraTree(t)
	res, err := Discover([]string{root}, 3)
	if err != nil {
		t.Fatal(err)
	}

	tf := res.Configurations[KindTerraform]
	if tf == nil {
		t.Fatal("no terraform configuration extracted")
	}
	locals := tf["locals"].(map[string]any)
	if locals["project"] != "gaia-demo" || locals["region"] != "europe-west1" {
		t.Errorf("locals = %v", locals)
	}
	vars := tf["variables"].([]string)
	if len(vars) != 2 || vars[0] != "cluster_name" {
		t.Errorf("variables = %v", vars)
	}
	resources := tf["resources"].([]string)
	if len(resources) != 1 || resources[0] != "google_container_cluster.primary" {
		t.Errorf("resources = %v", resources)
	}
}

func TestDiscoverCoherentTree(t *testing.T) {
	res, err := Discover([]string{infraTree(t)}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !res.InternalCoherence {
		t.Errorf("coherent tree flagged: %v", res.Discrepancies)
	}
}

func TestDiscoverFlagsHelmNameMismatch(t *testing.T) {
	root := infraTree(t)
	writeFile(t, filepath.Join(root, "apps", "values.yaml"), "name: other-api\n")

	res, err := Discover([]string{root}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.InternalCoherence {
		t.Fatal("mismatched release name not flagged")
	}
	found := false
	for _, d := range res.Discrepancies {
		if d.Kind == "helm_name_mismatch" {
			found = true
		}
	}
	if !found {
		t.Errorf("discrepancies = %v", res.Discrepancies)
	}
}

func TestDiscoverSSOTPrefersShallow(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "nested", "extra.tf"), "variable \"x\" {}\n")
	writeFile(t, filepath.Join(root, "main.tf"), "variable \"y\" {}\n")

	res, err := Discover([]string{root}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.SSOTFiles[KindTerraform]; filepath.Base(got) != "main.tf" {
		t.Errorf("terraform SSOT = %s, want root main.tf", got)
	}
}

func TestDiscoverMissingRootFails(t *testing.T) {
	if _, err := Discover([]string{"/no/such/root/anywhere"}, 3); err == nil {
		t.Error("missing root accepted")
	}
}

func TestArtifactPatternsOverride(t *testing.T) {
	t.Setenv(ArtifactPatternsEnv, "*.custom, *.tf")
	got := artifactPatterns()
	if len(got) != 2 || got[0] != "*.custom" || got[1] != "*.tf" {
		t.Errorf("patterns = %v", got)
	}
}

func TestClassifyFileKinds(t *testing.T) {
	cases := map[string]FileKind{
		"main.tf":                         KindTerraform,
		"kustomization.yaml":              KindKustomization,
		"helmrelease-api.yaml":            KindHelmRelease,
		"Dockerfile":                      KindDocker,
		"docker-compose.yml":              KindDocker,
		".github/workflows/ci.yml":        KindGithubWorkflow,
		"values-production.yaml":          KindHelmValues,
		".gitignore":                      KindGitArtifacts,
		"README.md":                       KindUnknown,
	}
	for path, want := range cases {
		if got := classifyFile(path); got != want {
			t.Errorf("classifyFile(%q) = %q, want %q", path, got, want)
		}
	}
}
