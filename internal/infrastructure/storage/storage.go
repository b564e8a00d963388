// Package storage persists uploaded files where the document worker can read them.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/config"
	"jan-server/services/docchat-api/internal/domain/document"
)

// Backend is a document.Storage that can also report its health.
type Backend interface {
	document.Storage
	Health(ctx context.Context) error
}

// New selects the backend named by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendLocal:
		return NewLocalStorage(cfg.UploadDir, log)
	case config.StorageBackendS3:
		return NewS3Storage(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
