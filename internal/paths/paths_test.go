package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatalf("failed to create marker: %v", err)
	}
	return root
}

func TestProjectRoot_MarkerInStartDir(t *testing.T) {
	root := newTestRoot(t)
	r := NewResolver(root)
	got, err := r.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot: %v", err)
	}
	if got != root {
		t.Errorf("ProjectRoot = %q, want %q", got, root)
	}
}

func TestProjectRoot_SearchesUpward(t *testing.T) {
	root := newTestRoot(t)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r := NewResolver(nested)
	got, err := r.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot: %v", err)
	}
	if got != root {
		t.Errorf("ProjectRoot = %q, want %q", got, root)
	}
}

func TestProjectRoot_NotFound(t *testing.T) {
	r := NewResolver(t.TempDir())
	if _, err := r.ProjectRoot(); err == nil {
		t.Error("expected error when no marker exists")
	}
}

func TestProjectRoot_Cached(t *testing.T) {
	root := newTestRoot(t)
	r := NewResolver(root)
	if _, err := r.ProjectRoot(); err != nil {
		t.Fatalf("ProjectRoot: %v", err)
	}
	// Remove the marker; the cached result must survive.
	if err := os.RemoveAll(filepath.Join(root, MarkerDir)); err != nil {
		t.Fatalf("remove marker: %v", err)
	}
	got, err := r.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot after marker removal: %v", err)
	}
	if got != root {
		t.Errorf("cached ProjectRoot = %q, want %q", got, root)
	}
}

func TestDirHelpers_CreateDirectories(t *testing.T) {
	root := newTestRoot(t)
	r := NewResolver(root)

	cases := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"logs", r.LogsDir, filepath.Join(root, "logs")},
		{"metrics", r.MetricsDir, filepath.Join(root, "metrics")},
		{"episodic", r.EpisodicDir, filepath.Join(root, "project-context", "episodic-memory")},
		{"pending", r.PendingUpdatesDir, filepath.Join(root, "project-context", "pending-updates")},
		{"session", r.SessionDir, filepath.Join(root, "session")},
		{"approvals", r.ApprovalsDir, filepath.Join(root, "approvals")},
		{"config", r.ConfigDir, filepath.Join(root, "config")},
	}
	for _, tc := range cases {
		got, err := tc.fn()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s dir = %q, want %q", tc.name, got, tc.want)
		}
		info, err := os.Stat(got)
		if err != nil || !info.IsDir() {
			t.Errorf("%s dir was not created: %v", tc.name, err)
		}
	}
}

func TestMemoryDir_Subdir(t *testing.T) {
	root := newTestRoot(t)
	r := NewResolver(root)
	got, err := r.MemoryDir("signals")
	if err != nil {
		t.Fatalf("MemoryDir: %v", err)
	}
	want := filepath.Join(root, "memory", "workflow-episodic", "signals")
	if got != want {
		t.Errorf("MemoryDir = %q, want %q", got, want)
	}
}

func TestContextDocument_NotCreated(t *testing.T) {
	root := newTestRoot(t)
	r := NewResolver(root)
	got, err := r.ContextDocument()
	if err != nil {
		t.Fatalf("ContextDocument: %v", err)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Errorf("context document should not be created, stat err = %v", err)
	}
}
