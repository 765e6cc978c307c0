package buildinfo

import "fmt"

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/flexyframe/artbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/flexyframe/artbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/flexyframe/artbot/core/buildinfo.Date=2026-10-01T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders the build identity for CLI version output and status endpoints.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
