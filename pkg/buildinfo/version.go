// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo.Version=v0.5.9 \
//	    -X github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/wapm
package buildinfo

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}

// UserAgent identifies wapm in registry requests.
func UserAgent() string {
	return "wapm/" + Version
}
