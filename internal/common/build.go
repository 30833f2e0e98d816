package common

import (
	"fmt"
	"runtime/debug"
)

// Version and GitCommit can be set via ldflags at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func GetModuleBuildInfo() (string, string, bool) {
	if Version != "dev" {
		return Version, GitCommit, true
	}

	// Fall back to the module information stamped by go install
	if info, ok := debug.ReadBuildInfo(); ok {
		version := info.Main.Version
		gitCommit := GitCommit

		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitCommit = setting.Value
				break
			}
		}

		return version, gitCommit, true
	}
	return "", "", false
}

func GetVersion() string {
	version, gitCommit, ok := GetModuleBuildInfo()
	if ok {
		return fmt.Sprintf("%s (git: %s)", version, gitCommit)
	}
	return "unknown"
}

// GetUserAgent is sent with every banking API request.
func GetUserAgent() string {
	version, _, ok := GetModuleBuildInfo()
	if !ok || len(version) == 0 {
		version = "dev"
	}
	return fmt.Sprintf("fif-client/%s", version)
}
