// Package buildinfo holds version and build metadata stamped at
// compile time via ldflags, surfaced by the control channel's "version"
// command (spec.md §4.8) and daemon startup log line.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// startTime records when the process started.
var startTime = time.Now()

// Info returns compile-time and platform metadata.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// String returns the one-line summary returned by the control
// channel's "version" command.
func String() string {
	return fmt.Sprintf("eventd %s (%s) built %s", Version, GitCommit, BuildTime)
}
