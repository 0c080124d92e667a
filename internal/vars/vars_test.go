package vars

import (
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// resetVars restores package state after a test that mutates it.
func resetVars(t *testing.T) {
	t.Helper()

	version, commit, built, modified, buildTime := Version, Commit, BuildTime, Modified, _buildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime, Modified, _buildTime = version, commit, built, modified, buildTime
	})
}

func TestFromBuildInfo_FillsUnsetValues(t *testing.T) {
	resetVars(t)
	Version, Commit, _buildTime = defaultVersion, defaultCommit, ""

	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Path: "github.com/acrc-community/acrc", Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "da15c174cd2ada1ad247906536c101e8f6799def"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "v1.4.0", Version)
	assert.Equal(t, "da15c174cd2ada1ad247906536c101e8f6799def", Commit)
	assert.Equal(t, "da15c17", CommitShort())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), BuildTime)
	assert.True(t, Modified)
}

func TestFromBuildInfo_KeepsLinkerValues(t *testing.T) {
	resetVars(t)
	Version, Commit, _buildTime = "v2.0.0", "abc1234", "2026-01-01T00:00:00Z"
	BuildTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "ffffffffffffffffffffffffffffffffffffffff"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
		},
	})

	assert.Equal(t, "v2.0.0", Version)
	assert.Equal(t, "abc1234", Commit)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), BuildTime)
}

func TestFromBuildInfo_DevelVersionIgnored(t *testing.T) {
	resetVars(t)
	Version = defaultVersion

	fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, defaultVersion, Version)
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Equal(t, Name, info.Name)
	assert.Equal(t, License, info.License)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, CommitShort(), info.CommitShort)
}
