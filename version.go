package prefetch

import (
	"fmt"
	"runtime"
)

// Build metadata, overridable at build time:
//
//	go build -ldflags "-X prefetch.Version=v0.4.0 -X prefetch.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "v0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// userAgent is the User-Agent value sent when the caller supplies none.
func userAgent() string {
	return fmt.Sprintf("prefetch/%s (%s)", Version, runtime.Version())
}

// versionFields returns build metadata as logger key-value pairs.
func versionFields() []any {
	return []any{"version", Version, "commit", GitCommit, "buildDate", BuildDate, "go", runtime.Version()}
}
