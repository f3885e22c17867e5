// Package version carries the build identity stamped at release time.
package version

// Version is overridden by -ldflags on release builds.
var Version = "0.3.1"
