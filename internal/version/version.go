package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version is overridden at build time via -ldflags "-X imgview/internal/version.Version=...".
var Version = ""

func String() string {
	v := strings.TrimSpace(Version)
	if v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
			return mv
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return fmt.Sprintf("dev-%s", s.Value[:7])
			}
		}
	}
	return "dev"
}
