// Package appinfo reports the running build's version for logs and the
// health endpoint.
package appinfo

import (
	"os"
	"runtime/debug"
)

// Version resolves the application version: the VERSION environment
// variable wins, then module build info, then the VCS revision stamped by
// the toolchain.
func Version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return "0.0.0-unknown"
}
