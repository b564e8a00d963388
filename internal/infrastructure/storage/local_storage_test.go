package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/config"
)

func TestLocalStorage_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, zerolog.Nop())
	require.NoError(t, err)

	location, err := store.Put(context.Background(), "conv_1/01abc-report.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(location))
	assert.Equal(t, filepath.Join(dir, "conv_1", "01abc-report.txt"), location)
	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NoError(t, store.Health(context.Background()))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)
}

func TestLocalStorage_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "conv_1/a.txt", strings.NewReader("abc"), 10, "text/plain")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "conv_1", "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNew_SelectsBackend(t *testing.T) {
	backend, err := New(context.Background(), &config.Config{
		StorageBackend: config.StorageBackendLocal,
		UploadDir:      t.TempDir(),
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, backend)

	_, err = New(context.Background(), &config.Config{StorageBackend: "ftp"}, zerolog.Nop())
	require.Error(t, err)
}
