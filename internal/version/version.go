// Package version carries build metadata stamped with
//
//	-ldflags "-X github.com/ramiqadoumi/go-task-queue/internal/version.Version=..."
package version

import "runtime"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }
