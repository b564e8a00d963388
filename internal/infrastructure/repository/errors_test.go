package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

func TestDatabaseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want platformerrors.ErrorType
	}{
		{"duplicate key", gorm.ErrDuplicatedKey, platformerrors.ErrorTypeConflict},
		{"wrapped duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), platformerrors.ErrorTypeConflict},
		{"record not found", gorm.ErrRecordNotFound, platformerrors.ErrorTypeNotFound},
		{"anything else", errors.New("connection reset"), platformerrors.ErrorTypeDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DatabaseError(context.Background(), tt.err, "failed", "code")
			assert.True(t, platformerrors.IsErrorType(err, tt.want))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
