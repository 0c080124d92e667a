package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", &buf)
	l.Info().Str("path", "uploads/a.zip").Msg("stored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stored", entry["message"])
	assert.Equal(t, "uploads/a.zip", entry["path"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_ConsoleHasNoColorOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	l := New("console", &buf)
	l.Warn().Msg("plain")

	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestOpenOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, openOutput("stdout"))
	assert.Equal(t, os.Stderr, openOutput("stderr"))
	assert.Equal(t, os.Stderr, openOutput(""))

	path := filepath.Join(t.TempDir(), "acrc.log")
	w := openOutput(path)
	f, ok := w.(*os.File)
	require.True(t, ok)
	defer func() { _ = f.Close() }()
	assert.Equal(t, path, f.Name())

	// directory that does not exist falls back to stderr
	assert.Equal(t, os.Stderr, openOutput(filepath.Join(t.TempDir(), "missing", "acrc.log")))
}
