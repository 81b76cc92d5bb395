package main

import (
	"fmt"
	"runtime/debug"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// versionString reports the version plus VCS revision when the binary
// carries build info.
func versionString() string {
	s := version
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	if s == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		s = info.Main.Version
	}
	var rev, modified string
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			rev = kv.Value
		case "vcs.modified":
			if kv.Value == "true" {
				modified = "+dirty"
			}
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" {
		s = fmt.Sprintf("%s (%s%s)", s, rev, modified)
	}
	return s
}
