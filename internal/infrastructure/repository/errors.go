// Package repository holds the gorm-backed repositories and their shared error mapping.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// DatabaseError maps a gorm error to a platform error. Unique violations become conflicts
// and missing rows become not-found.
func DatabaseError(ctx context.Context, err error, message, code string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			message+": duplicate key", err, code)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			message+": not found", err, code)
	default:
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			message, err, code)
	}
}

// NotFound reports a missing entity.
func NotFound(ctx context.Context, kind, id, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("%s not found: %s", kind, id), nil, code)
}
