// Package version holds build information set through -ldflags.
package version

// Version is the release version.
var Version = "0.1.0"

// GitCommit is the commit the binary was built from.
var GitCommit = "unknown"

// BuildDate is the build timestamp.
var BuildDate = "unknown"
