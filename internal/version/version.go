// Package version exposes build information served on /version.
package version

// Version is the beacon release version, stamped at build time via
// ldflags. The default marks a local development build.
var Version = "0.0.0-dev"

// GitCommit is the git commit hash, set at build time via ldflags.
var GitCommit = "unknown"

// BuildDate is the build date, set at build time via ldflags.
var BuildDate = "unknown"
