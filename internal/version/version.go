// Package version carries the release identity of the dp binary. Release
// builds set the variables with -ldflags; local builds keep the defaults.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the text printed by dp version.
func Info() string {
	return fmt.Sprintf("dp version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies dp on every Google API request so audit traffic is
// attributable in Cloud Audit Logs.
func UserAgent() string {
	return "dp-gcp/" + Version
}
