package platformerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeExternal, http.StatusBadGateway},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorTypeDatabaseError, http.StatusInternalServerError},
		{ErrorType("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeToHTTPStatus(tt.errorType))
		})
	}
}

func TestNewError_CarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	err := NewError(ctx, LayerDomain, ErrorTypeNotFound, "document not found", nil, "a1b2")

	assert.Equal(t, "req-123", err.GetRequestID())
	assert.Equal(t, "a1b2", err.GetUUID())
	assert.Equal(t, ErrorTypeNotFound, err.GetErrorType())
	assert.Contains(t, err.Error(), "document not found")
}

func TestAsError_PreservesType(t *testing.T) {
	ctx := context.Background()
	inner := NewError(ctx, LayerRepository, ErrorTypeConflict, "duplicate namespace", nil, "dup-uuid")

	wrapped := AsError(ctx, LayerDomain, inner, "create document")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeConflict, wrapped.Type)
	assert.Equal(t, "dup-uuid", wrapped.UUID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeConflict))

	plain := AsError(ctx, LayerDomain, errors.New("boom"), "create document")
	assert.Equal(t, ErrorTypeInternal, plain.Type)

	assert.Nil(t, AsError(ctx, LayerDomain, nil, "noop"))
}
