package version

import "github.com/fatih/color"

// Version information for the clifmatch CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = versionMajorColor.Sprint("0") + "." + versionMinorColor.Sprint("3") + "." + versionPatchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""

	// IRSchema is the IR document layout this build reads and writes.
	IRSchema = "1"
)

// String renders the version with whatever build metadata is set.
func String() string {
	s := "clifmatch " + Version
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s += " (" + commit + ")"
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
