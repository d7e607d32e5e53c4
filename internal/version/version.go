// Package version holds the release version of metrix.
package version

// Version is overridden at build time with -ldflags "-X metrix/internal/version.Version=...".
var Version = "0.1.0"
