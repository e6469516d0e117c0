// Package version reports the build version of the sensor.
// Both values can be set at build time via ldflags, e.g.
// -ldflags '-X github.com/invisible-tech/keylogger-sensor/internal/version.Version=1.2.3'
package version

import "fmt"

var (
	// Version is the release version; default for local builds.
	Version = "0.1.0"
	// Commit is the source revision the binary was built from.
	Commit = "unknown"
)

// String returns the version and commit as shown in logs and /health.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
