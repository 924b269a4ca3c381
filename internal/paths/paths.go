// Package paths locates the per-project data root and the directories the
// Gaia runtime persists into. The root is the nearest ancestor of the working
// directory that contains a .claude marker directory; all store directories
// hang off it and are created on first use.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MarkerDir is the directory that marks a project root.
const MarkerDir = ".claude"

// Resolver locates and caches the project data root for the process lifetime.
type Resolver struct {
	mu     sync.Mutex
	root   string
	rootOK bool
	start  string
}

// NewResolver creates a resolver that searches upward from startDir.
// An empty startDir means the current working directory.
func NewResolver(startDir string) *Resolver {
	return &Resolver{start: startDir}
}

// ProjectRoot returns the project data root, searching upward from the start
// directory for the marker. The result is cached; subsequent calls return the
// cached path without touching the filesystem.
func (r *Resolver) ProjectRoot() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rootOK {
		return r.root, nil
	}

	dir := r.start
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", r.start, err)
	}

	for {
		marker := filepath.Join(dir, MarkerDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			r.root = dir
			r.rootOK = true
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s directory found above %s", MarkerDir, r.start)
}

// ensure resolves the root, joins the given elements and creates the
// resulting directory if it does not exist yet.
func (r *Resolver) ensure(elem ...string) (string, error) {
	root, err := r.ProjectRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{root}, elem...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// LogsDir returns the directory for daily and session audit journals.
func (r *Resolver) LogsDir() (string, error) {
	return r.ensure("logs")
}

// MetricsDir returns the directory for monthly metrics journals.
func (r *Resolver) MetricsDir() (string, error) {
	return r.ensure("metrics")
}

// MemoryDir returns the workflow memory directory, optionally nested under
// the given subdirectory.
func (r *Resolver) MemoryDir(subdir string) (string, error) {
	if subdir == "" {
		return r.ensure("memory", "workflow-episodic")
	}
	return r.ensure("memory", "workflow-episodic", subdir)
}

// EpisodicDir returns the episodic memory store directory.
func (r *Resolver) EpisodicDir() (string, error) {
	return r.ensure("project-context", "episodic-memory")
}

// PendingUpdatesDir returns the pending-updates store directory.
func (r *Resolver) PendingUpdatesDir() (string, error) {
	return r.ensure("project-context", "pending-updates")
}

// SessionDir returns the resumable agent session directory.
func (r *Resolver) SessionDir() (string, error) {
	return r.ensure("session")
}

// ApprovalsDir returns the directory holding the single-use approval file.
func (r *Resolver) ApprovalsDir() (string, error) {
	return r.ensure("approvals")
}

// ConfigDir returns the runtime configuration directory.
func (r *Resolver) ConfigDir() (string, error) {
	return r.ensure("config")
}

// ContextDocument returns the path of the externally-owned project context
// document. The file itself is not created.
func (r *Resolver) ContextDocument() (string, error) {
	root, err := r.ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "project-context", "project-context.json"), nil
}

// HookStateFile returns the path of the pre/post hook handoff file.
func (r *Resolver) HookStateFile() (string, error) {
	root, err := r.ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".hooks_state.json"), nil
}

// WorkflowStateFile returns the path of the current-phase state file.
func (r *Resolver) WorkflowStateFile() (string, error) {
	root, err := r.ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".workflow_state.json"), nil
}
