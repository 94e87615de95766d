package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time using ldflags.
// Example:
//
//	go build -ldflags "-X github.com/keanucz/audioconv/internal/version.Version=v0.3.0 \
//	  -X github.com/keanucz/audioconv/internal/version.Commit=abc123 \
//	  -X github.com/keanucz/audioconv/internal/version.Date=2026-01-01T00:00:00Z"
var (
	// Version is the semantic version (e.g., v0.3.0)
	Version = "dev"
	// Commit is the git commit SHA
	Commit = "unknown"
	// Date is the build date
	Date = "unknown"
)

// Info returns a multi-line summary of the build, including the platform the
// tool downloads ffmpeg builds for.
func Info() string {
	return fmt.Sprintf("Version:    %s\nCommit:     %s\nBuilt:      %s\nGo version: %s\nPlatform:   %s",
		Version,
		Commit,
		Date,
		runtime.Version(),
		Platform(),
	)
}

// Short returns a short version string.
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

// Platform returns the GOOS/GOARCH pair of the running binary.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
