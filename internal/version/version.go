// Package version holds build metadata injected at link time.
package version

// Version is the release version, set via -ldflags at build time.
var Version = "dev"

// Commit is the git commit hash, set via -ldflags at build time.
var Commit = "unknown"
