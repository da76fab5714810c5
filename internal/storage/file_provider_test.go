package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileProvider(t *testing.T) *LocalFileProvider {
	t.Helper()
	provider, err := NewLocalFileProvider(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, provider.Initialize(uuid.New()))
	return provider
}

func writeJobFile(t *testing.T, provider FileProvider, name, content string) {
	t.Helper()
	w, err := provider.CreateFile(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestLocalFileProviderInitialize(t *testing.T) {
	root := t.TempDir()
	provider, err := NewLocalFileProvider(root)
	require.NoError(t, err)

	jobId := uuid.New()
	require.NoError(t, provider.Initialize(jobId))

	assert.Equal(t, filepath.Join(root, jobId.String()), provider.HomeDirectory())
	assert.DirExists(t, provider.HomeDirectory())
}

func TestLocalFileProviderCreateFile(t *testing.T) {
	provider := setupFileProvider(t)

	writeJobFile(t, provider, "test.xtf", "content")
	writeJobFile(t, provider, filepath.Join(provider.HomeDirectory(), "data.gpkg"), "gpkg")

	files, err := provider.GetFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"test.xtf", "data.gpkg"}, files)

	data, err := os.ReadFile(filepath.Join(provider.HomeDirectory(), "test.xtf"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestLocalFileProviderRejectsOutsidePaths(t *testing.T) {
	provider := setupFileProvider(t)

	_, err := provider.CreateFile("../escape.txt")
	assert.Error(t, err)

	_, err = provider.CreateFile(filepath.Join(t.TempDir(), "other.txt"))
	assert.Error(t, err)
}

func TestLocalFileProviderUninitialized(t *testing.T) {
	provider, err := NewLocalFileProvider(t.TempDir())
	require.NoError(t, err)

	_, err = provider.CreateFile("test.xtf")
	assert.Error(t, err)

	_, ok := provider.GetLogFile(LogKindLog)
	assert.False(t, ok)
}

func TestLocalFileProviderGetLogFile(t *testing.T) {
	provider := setupFileProvider(t)

	writeJobFile(t, provider, "test.xtf", "transfer")
	writeJobFile(t, provider, "test_log.log", "log")
	writeJobFile(t, provider, "test_Log.XTF", "xtflog")
	require.NoError(t, os.Mkdir(filepath.Join(provider.HomeDirectory(), "dir_log.csv"), os.ModePerm))

	path, ok := provider.GetLogFile(LogKindLog)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(provider.HomeDirectory(), "test_log.log"), path)

	path, ok = provider.GetLogFile(LogKindXtf)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(provider.HomeDirectory(), "test_Log.XTF"), path)

	_, ok = provider.GetLogFile(LogKindCsv)
	assert.False(t, ok)

	_, ok = provider.GetLogFile(LogKindGeoJson)
	assert.False(t, ok)
}

func TestIsLogFile(t *testing.T) {
	assert.True(t, IsLogFile("a_log.geojson", LogKindGeoJson))
	assert.False(t, IsLogFile("a_log.geojson", LogKindXtf))
	assert.False(t, IsLogFile("a.xtf", LogKindXtf))
	assert.False(t, IsLogFile("a_logs.xtf", LogKindXtf))
}

func TestLocalFileProviderGetLogFileOfTransferFile(t *testing.T) {
	provider := setupFileProvider(t)

	writeJobFile(t, provider, "roads_log.xtf", "transfer")
	writeJobFile(t, provider, "roads_log_log.xtf", "xtflog")
	writeJobFile(t, provider, "other_log.log", "unrelated")

	provider.SetTransferFileName("roads_log.xtf")

	path, ok := provider.GetLogFile(LogKindXtf)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(provider.HomeDirectory(), "roads_log_log.xtf"), path)

	_, ok = provider.GetLogFile(LogKindLog)
	assert.False(t, ok)
}
