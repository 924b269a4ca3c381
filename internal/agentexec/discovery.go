package agentexec

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileKind categorizes a discovered artifact.
type FileKind string

const (
	KindTerraform      FileKind = "terraform"
	KindKustomization  FileKind = "kustomization"
	KindHelmRelease    FileKind = "helmrelease"
	KindDocker         FileKind = "docker"
	KindGithubWorkflow FileKind = "github-workflow"
	KindHelmValues     FileKind = "helm-values"
	KindGitArtifacts   FileKind = "git-artifacts"
	KindUnknown        FileKind = "unknown"
)

// DefaultMaxDepth bounds the discovery walk below each root.
const DefaultMaxDepth = 3

// ArtifactPatternsEnv overrides the priority-file list, comma-separated.
const ArtifactPatternsEnv = "GAIA_ARTIFACT_PATTERNS"

// defaultArtifactPatterns is the priority-file list in match order.
var defaultArtifactPatterns = []string{
	"*.tf", "kustomization.yaml", "kustomization.yml", "helmrelease*.yaml",
	"Dockerfile", "docker-compose*.yml", "docker-compose*.yaml",
	"values*.yaml", "values*.yml", ".gitignore", ".gitattributes", "*.yaml", "*.yml",
}

// artifactPatterns returns the active priority-file list.
func artifactPatterns() []string {
	if raw := os.Getenv(ArtifactPatternsEnv); raw != "" {
		var out []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultArtifactPatterns
}

// classifyFile maps a relative path to its kind.
func classifyFile(relPath string) FileKind {
	base := strings.ToLower(filepath.Base(relPath))
	dir := strings.ToLower(filepath.ToSlash(filepath.Dir(relPath)))

	switch {
	case strings.HasSuffix(base, ".tf"):
		return KindTerraform
	case base == "kustomization.yaml" || base == "kustomization.yml":
		return KindKustomization
	case strings.HasPrefix(base, "helmrelease") && isYAML(base):
		return KindHelmRelease
	case base == "dockerfile" || strings.HasPrefix(base, "docker-compose"):
		return KindDocker
	case strings.Contains(dir, ".github/workflows") && isYAML(base):
		return KindGithubWorkflow
	case strings.HasPrefix(base, "values") && isYAML(base):
		return KindHelmValues
	case base == ".gitignore" || base == ".gitattributes":
		return KindGitArtifacts
	}
	return KindUnknown
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// DiscoveredFile is one artifact found during the walk.
type DiscoveredFile struct {
	Path  string   `json:"path"`
	Kind  FileKind `json:"kind"`
	Depth int      `json:"depth"`
}

// Discrepancy records one internal-coherence violation.
type Discrepancy struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
}

// DiscoveryResult is the Layer B output.
type DiscoveryResult struct {
	DiscoveredFiles   []DiscoveredFile            `json:"discovered_files"`
	SSOTFiles         map[FileKind]string         `json:"ssot_files"`
	Configurations    map[FileKind]map[string]any `json:"configurations"`
	InternalCoherence bool                        `json:"internal_coherence"`
	Discrepancies     []Discrepancy               `json:"discrepancies"`
}

// Discover walks the given infrastructure roots up to maxDepth, categorizes
// matching files, parses one SSOT file per kind, and evaluates internal
// coherence. Independent roots walk in parallel.
func Discover(roots []string, maxDepth int) (*DiscoveryResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	patterns := artifactPatterns()

	var mu sync.Mutex
	var files []DiscoveredFile

	var g errgroup.Group
	for _, root := range roots {
		root := root
		g.Go(func() error {
			found, err := walkRoot(root, maxDepth, patterns)
			if err != nil {
				return err
			}
			mu.Lock()
			files = append(files, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic order regardless of walk interleaving: shallow first,
	// then lexicographic.
	sort.Slice(files, func(i, j int) bool {
		if files[i].Depth != files[j].Depth {
			return files[i].Depth < files[j].Depth
		}
		return files[i].Path < files[j].Path
	})

	result := &DiscoveryResult{
		DiscoveredFiles: files,
		SSOTFiles:       map[FileKind]string{},
		Configurations:  map[FileKind]map[string]any{},
	}

	// SSOT per kind: first encountered after the depth sort, which prefers
	// root-level files.
	for _, f := range files {
		if f.Kind == KindUnknown {
			continue
		}
		if _, ok := result.SSOTFiles[f.Kind]; !ok {
			result.SSOTFiles[f.Kind] = f.Path
		}
	}
	for kind, path := range result.SSOTFiles {
		cfg, err := extractConfiguration(kind, path)
		if err != nil {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:        "unreadable_ssot",
				Description: fmt.Sprintf("could not parse %s SSOT: %v", kind, err),
				File:        path,
			})
			continue
		}
		result.Configurations[kind] = cfg
	}

	result.Discrepancies = append(result.Discrepancies, checkCoherence(result.Configurations)...)
	result.InternalCoherence = len(result.Discrepancies) == 0
	return result, nil
}

// walkRoot lists matching files under one root to a bounded depth.
func walkRoot(root string, maxDepth int, patterns []string) ([]DiscoveredFile, error) {
	var out []DiscoveredFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return fmt.Errorf("infrastructure root missing: %s", root)
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if rel != "." && depth >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !matchesAny(filepath.Base(path), patterns) {
			return nil
		}
		out = append(out, DiscoveredFile{
			Path:  path,
			Kind:  classifyFile(rel),
			Depth: depth,
		})
		return nil
	})
	return out, err
}

func matchesAny(base string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// checkCoherence cross-checks the parsed SSOT configurations.
func checkCoherence(configs map[FileKind]map[string]any) []Discrepancy {
	var out []Discrepancy

	release, hasRelease := configs[KindHelmRelease]
	values, hasValues := configs[KindHelmValues]
	if hasRelease && hasValues {
		releaseName, _ := release["releaseName"].(string)
		if releaseName == "" {
			releaseName, _ = release["name"].(string)
		}
		valuesName, _ := values["name"].(string)
		if releaseName != "" && valuesName != "" && releaseName != valuesName {
			out = append(out, Discrepancy{
				Kind:        "helm_name_mismatch",
				Description: fmt.Sprintf("HelmRelease releaseName %q does not match values name %q", releaseName, valuesName),
			})
		}
	}

	kustomization, hasKustomization := configs[KindKustomization]
	if hasKustomization {
		if ns, ok := kustomization["namespace"].(string); ok && hasRelease {
			if rns, ok := release["namespace"].(string); ok && rns != ns {
				out = append(out, Discrepancy{
					Kind:        "namespace_mismatch",
					Description: fmt.Sprintf("kustomization namespace %q does not match HelmRelease namespace %q", ns, rns),
				})
			}
		}
	}
	return out
}
