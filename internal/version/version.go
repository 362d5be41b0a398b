// Package version holds build-time version information.
// Values are injected via -ldflags at build time.
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("ammlab %s (commit %s, built %s)", Version, Commit, BuildDate)
}
