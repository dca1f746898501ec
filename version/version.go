// Package version carries build metadata, set with -ldflags at release.
package version

var (
	Version   = "0.1.0"
	BuildDate = "2025-02-20"
	Commit    = "dev"
)

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// String formats the version line printed by the CLI.
func String() string {
	return "vetsynth " + Version + " (" + Commit + ", built " + BuildDate + ")"
}
