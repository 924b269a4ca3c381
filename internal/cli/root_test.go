package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"wrapped sentinel", fmt.Errorf("%w: --days must be positive", errUsage), true},
		{"unknown command", errors.New(`unknown command "foo" for "gaia"`), true},
		{"unknown flag", errors.New("unknown flag: --bogus"), true},
		{"arity", errors.New("accepts 2 arg(s), received 1"), true},
		{"required flag", errors.New(`requires at least 1 arg(s), only received 0`), true},
		{"plain failure", errors.New("failed to read episode"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUsageError(tt.err); got != tt.want {
				t.Errorf("isUsageError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestApprovalSecretPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := approvalSecret(dir)
	if err != nil {
		t.Fatalf("approvalSecret: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected a generated secret")
	}

	second, err := approvalSecret(dir)
	if err != nil {
		t.Fatalf("approvalSecret second call: %v", err)
	}
	if string(first) != string(second) {
		t.Error("secret changed between invocations")
	}

	info, err := os.Stat(filepath.Join(dir, ".approval_secret"))
	if err != nil {
		t.Fatalf("stat secret: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secret mode = %v, want 0600", info.Mode().Perm())
	}
}
