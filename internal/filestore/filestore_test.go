package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"drift_evo9.zip", "drift_evo9.zip"},
		{"Mazda RX-7 (FD).zip", "Mazda_RX-7__FD_.zip"},
		{"../../etc/passwd", "passwd"},
		{`C:\cars\ks_bmw.zip`, "ks_bmw.zip"},
		{"автомобиль.zip", "__________.zip"},
		{"", "archive"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestUniqueName(t *testing.T) {
	name := UniqueName("drift evo9.zip")
	assert.Regexp(t, regexp.MustCompile(`^drift_evo9_[0-9a-f]{8}\.zip$`), name)

	assert.NotEqual(t, UniqueName("a.zip"), UniqueName("a.zip"))
	assert.Regexp(t, `^archive_[0-9a-f]{8}\.zip$`, UniqueName(".zip"))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := New(dir)

	res, err := store.Save([]byte("PK\x03\x04 payload"), "my car.zip")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(res.Path))
	assert.Equal(t, filepath.Base(res.Path), res.Name)
	assert.Equal(t, "my car.zip", res.OriginalName)
	assert.Equal(t, int64(12), res.Size)

	content, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04 payload", string(content))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_NeverOverwrites(t *testing.T) {
	store := New(t.TempDir())

	first, err := store.Save([]byte("one"), "car.zip")
	require.NoError(t, err)
	second, err := store.Save([]byte("two"), "car.zip")
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)

	content, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))
}

func TestSave_Empty(t *testing.T) {
	_, err := New(t.TempDir()).Save(nil, "car.zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "car.zip", storeErr.Name)
}

func TestSave_DirectoryFailure(t *testing.T) {
	// a regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := New(filepath.Join(blocker, "nested")).Save([]byte("data"), "car.zip")
	require.Error(t, err)

	var storeErr *Error
	assert.True(t, errors.As(err, &storeErr))
	assert.Contains(t, err.Error(), "failed to create store directory")
}
