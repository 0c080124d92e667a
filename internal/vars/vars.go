// Package vars holds build metadata of the acrc binary.
//
// Values come from the linker (ldflags) in release builds. Anything the linker left
// unset is filled from the module and VCS information embedded by the Go toolchain.
package vars

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

// License of the project
const License = "MIT"

const (
	defaultVersion = "dev"
	defaultCommit  = "unknown"
)

var (
	// Name of the project
	Name = "acrc"

	// Version is the release tag, e.g. v1.2.3
	Version = defaultVersion

	// Commit is the git SHA the binary was built from
	Commit = defaultCommit

	// Revision is the commit count, set by release builds only
	Revision = 0

	// BuildTime is the build (or commit) time, UTC
	BuildTime = time.Unix(0, 0).UTC()

	// Modified reports a build from a dirty work tree
	Modified bool

	// URL to repository (https)
	URL = "https://github.com/acrc-community/acrc"

	_revision  string
	_buildTime string
)

// BuildInfo is the payload of GET /api/version.
type BuildInfo struct {
	// betteralign:ignore

	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	Revision    int       `json:"revision,omitempty"`
	BuildTime   time.Time `json:"build_time,omitempty"`
	Modified    bool      `json:"modified,omitempty"`
	GoVersion   string    `json:"go_version"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(bi)
	}
}

// fromBuildInfo fills values the linker did not set from toolchain build info.
func fromBuildInfo(bi *debug.BuildInfo) {
	if Version == defaultVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == defaultCommit && s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if _buildTime != "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				BuildTime = t.UTC()
			}
		case "vcs.modified":
			Modified = s.Value == "true"
		}
	}
}

// Print writes the build information to the standard output.
func Print() {
	info := Info()
	fmt.Printf(`name:     %s
url:      %s
file:     %s
version:  %s
commit:   %s
modified: %t
revision: %d
built:    %s
go:       %s
license:  %s
`, info.Name, info.URL, os.Args[0], info.Version, info.Commit, info.Modified,
		info.Revision, info.BuildTime.Format(time.RFC3339), info.GoVersion, info.License)
}

// Info returns the build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		Modified:    Modified,
		GoVersion:   runtime.Version(),
		URL:         URL,
		License:     License,
	}
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
