// Package version holds build-time version metadata, overridden via
// -ldflags "-X github.com/hanzoai/bootnode/internal/version.Version=... -X .../Commit=...".
package version

var (
	// Version is the semantic version of this build.
	Version = "dev"
	// Commit is the git commit SHA this build was made from.
	Commit = "unknown"
)
