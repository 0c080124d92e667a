package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDB_DownloadsMissing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("mmdb-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "acrc.mmdb")
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb-bytes", string(data))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.EqualValues(t, 1, hits.Load(), "fresh database is not downloaded again")
}

func TestEnsureDB_RefreshesOutdated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "acrc.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, 24*time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestEnsureDB_BadStatusKeepsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "acrc.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.Error(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}

func TestOpen_InvalidDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.Empty(t, p.CountryCode("8.8.8.8"))
	assert.NoError(t, p.Close())
}
