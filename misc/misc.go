// Package misc keeps build identification helpers in one place so both the CLI
// and the debug reporter show the same values.
package misc

import "runtime/debug"

// Set at build time via -ldflags "-X nsg/misc.version=... -X nsg/misc.gitHash=...".
var (
	version = ""
	gitHash = ""
)

const appName = "nsg"

// GetAppName returns program name used for configuration, logging and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns program version - either injected during build or taken
// from the module build information.
func GetVersion() string {
	if len(version) > 0 {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && len(bi.Main.Version) > 0 {
		return bi.Main.Version
	}
	return "unknown"
}

// GetGitHash returns VCS revision recorded in the binary.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		var rev, modified string
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				rev = s.Value
			case "vcs.modified":
				if s.Value == "true" {
					modified = "*"
				}
			}
		}
		if len(rev) > 0 {
			if len(rev) > 12 {
				rev = rev[:12]
			}
			return rev + modified
		}
	}
	return "unknown"
}
