// Package version carries build metadata set with -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/sydlexius/shears/internal/version.Version=v1.2.0 -X github.com/sydlexius/shears/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the version and commit in one line.
func String() string {
	return Version + " (" + Commit + ")"
}
