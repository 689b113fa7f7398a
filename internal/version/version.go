package version

import "fmt"

var (
	// Version is the current application version, set with -ldflags.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line version banner printed by the -version flag.
func String(tool string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", tool, Version, GitSHA, BuildTime)
}
