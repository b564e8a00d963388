package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docchat-api", cfg.ServiceName)
	assert.Equal(t, ":8088", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 10, cfg.MaxUploadFiles)
	assert.Equal(t, StorageBackendLocal, cfg.StorageBackend)
	assert.Equal(t, []string{"application/pdf", "text/plain"}, cfg.AllowedMIMETypes)
	assert.False(t, cfg.StaleSweepEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("ALLOWED_MIME_TYPES", "application/pdf")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, []string{"application/pdf"}, cfg.AllowedMIMETypes)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_StorageValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "s3 without bucket",
			env:     map[string]string{"STORAGE_BACKEND": "s3"},
			wantErr: "S3_BUCKET is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"STORAGE_BACKEND": "ftp"},
			wantErr: "unsupported STORAGE_BACKEND",
		},
		{
			name:    "empty worker url",
			env:     map[string]string{"WORKER_URL": " "},
			wantErr: "WORKER_URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("s3 with bucket", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "S3")
		t.Setenv("S3_BUCKET", "docs")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, StorageBackendS3, cfg.StorageBackend)
	})
}
