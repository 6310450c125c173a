// Package misc provides build time information set by the linker.
package misc

// Set at build time via -ldflags.
var (
	appName = "quire"
	version = "0.0.0-dev"
	gitHash = "unknown"
)

// GetAppName returns the program name used for logging, temporary files and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns the release version.
func GetVersion() string {
	return version
}

// GetGitHash returns the git commit the binary was built from.
func GetGitHash() string {
	return gitHash
}
