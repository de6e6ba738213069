package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables, set with:
//
//	go build -ldflags "-X github.com/yndnr/crmdesk-go/internal/infra/buildinfo.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build information.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(debug.ReadBuildInfo)
	})
	return resolved
}

func resolve(read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := read()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String returns a formatted version string.
func String() string {
	i := Get()
	return i.Version + " (" + i.Commit + ") built at " + i.BuildTime + " " + i.Platform
}
