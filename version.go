// Package draftranker provides version information for the draft-ranker tool.
package draftranker

// Version represents the current semantic version of draft-ranker.
//
// Pre-1.0: the cache record layout is stable, CLI flags may still change
// between minor versions.
const Version = "0.3.0"

// VersionInfo encapsulates version metadata for draft-ranker
type VersionInfo struct {
	// Version contains the semantic version string following semver format
	Version string

	// Name contains the canonical tool name
	Name string
}

// GetVersion returns structured version information.
//
// Usage:
//
//	info := GetVersion()
//	log.Printf("Using %s version %s", info.Name, info.Version)
func GetVersion() VersionInfo {
	return VersionInfo{
		Version: Version,
		Name:    "draft-ranker",
	}
}
