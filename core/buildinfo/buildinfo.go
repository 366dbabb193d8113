// Package buildinfo carries version data stamped at link time:
//
//	-X 'github.com/m3rciful/sdbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/sdbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/sdbot/core/buildinfo.Date=2026-01-30T12:00:00Z'
package buildinfo

import "runtime"

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Info is the build summary reported by health checks.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go"`
}

// Get returns the current build summary.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}
