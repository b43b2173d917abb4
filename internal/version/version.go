// Package version exposes build information injected at link time.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	version      = ""                     // Injected with a linker flag
	buildDate    = "1970-01-01T00:00:00Z" // Injected with a linker flag
	gitCommit    = ""                     // Injected with a linker flag
	gitTreeState = ""                     // Injected with a linker flag
)

// Version describes the build of the image-factory binary.
type Version struct {
	Version      string    `json:"version"`
	BuildDate    time.Time `json:"buildDate"`
	GitCommit    string    `json:"gitCommit"`
	GitTreeDirty bool      `json:"gitTreeDirty"`
	GoVersion    string    `json:"goVersion"`
	Platform     string    `json:"platform"`
}

// GetVersion returns the Version of the running binary. A binary built
// without release information reports a "devel" version that carries the
// short commit, if known.
func GetVersion() Version {
	return newVersion(version, buildDate, gitCommit, gitTreeState)
}

func newVersion(v, date, commit, treeState string) Version {
	built, err := time.Parse(time.RFC3339, date)
	if err != nil {
		built = time.Unix(0, 0).UTC()
	}
	ver := Version{
		Version:      v,
		BuildDate:    built,
		GitCommit:    commit,
		GitTreeDirty: treeState != "clean",
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if ver.Version != "" && ver.GitCommit != "" && !ver.GitTreeDirty {
		return ver
	}
	ver.Version = "devel+unknown"
	if len(commit) >= 7 {
		ver.Version = "devel+" + commit[:7]
	}
	if ver.GitTreeDirty {
		ver.Version += ".dirty"
	}
	return ver
}
