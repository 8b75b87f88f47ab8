// Package version carries build metadata stamped in with -ldflags -X.
package version

import "fmt"

// Set at link time, for example
// -X github.com/banshee-data/stemview/internal/version.Version=v0.3.0
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and status pages.
func String() string {
	sha := GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("stemview %s (%s, built %s)", Version, sha, BuildTime)
}
