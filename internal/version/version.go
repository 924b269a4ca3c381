// Package version exposes the build metadata stamped in at link time.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Stamped via -ldflags "-X github.com/gaiaops/gaia/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Short returns just the version, for the --version template.
func Short() string {
	return Version
}

// Info renders the one-line form shown by gaia version.
func Info() string {
	return fmt.Sprintf("gaia %s (commit %s, built %s, %s)",
		Version, shortCommit(), BuildDate, runtime.Version())
}

// Full renders the multi-line form shown by gaia version --full.
func Full() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gaia %s\n", Version)
	fmt.Fprintf(&b, "  commit:  %s\n", Commit)
	fmt.Fprintf(&b, "  built:   %s\n", BuildDate)
	fmt.Fprintf(&b, "  go:      %s\n", runtime.Version())
	fmt.Fprintf(&b, "  os/arch: %s/%s", runtime.GOOS, runtime.GOARCH)
	return b.String()
}

// shortCommit abbreviates full SHAs; anything already short passes through.
func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
