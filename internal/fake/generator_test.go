package fake

import (
	"path/filepath"
	"testing"

	"github.com/acrc-community/acrc/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateData(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "acrc.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	GenerateData(store, 5)

	servers, err := store.ListServers("")
	require.NoError(t, err)
	assert.Len(t, servers, 5)

	cars, err := store.ListCars("")
	require.NoError(t, err)
	require.Len(t, cars, 5)
	for _, c := range cars {
		assert.NotEmpty(t, c.DownloadToken)
		assert.Empty(t, c.FilePath)
	}
}
