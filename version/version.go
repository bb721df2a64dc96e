package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time with -ldflags "-X cropguard-web/version.BuildVersion=..."
var (
	BuildVersion = "dev"
	GitSHA       = ""
)

// Info describes the running binary
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get reports the build of service, falling back to the VCS stamp the Go
// toolchain embeds when ldflags were not set
func Get(service string) Info {
	info := Info{
		Service:   service,
		Version:   BuildVersion,
		GitSHA:    GitSHA,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitSHA == "" {
				info.GitSHA = s.Value
			}
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short is the version string shown in page footers
func (i Info) Short() string {
	if len(i.GitSHA) >= 7 {
		return i.Version + " (" + i.GitSHA[:7] + ")"
	}
	return i.Version
}
