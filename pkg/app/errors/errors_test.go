package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError_StatusCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		category Category
		status   int
		message  string
	}{
		{"general", GeneralError(cause), CategoryGeneralError, http.StatusInternalServerError, "Internal Server Error"},
		{"not found", ResourceNotFoundError(cause, "transfer not found"), CategoryResourceNotFound, http.StatusNotFound, "transfer not found"},
		{"bad request", BadRequestError(cause, "invalid amount"), CategoryDataError, http.StatusBadRequest, "invalid amount"},
		{"forbidden", ForbiddenError(cause, "Caller is not a minter"), CategoryForbidden, http.StatusForbidden, "Caller is not a minter"},
		{"unauthorized", UnAuthorizedError(cause, "caller required"), CategoryUnauthorized, http.StatusUnauthorized, "caller required"},
		{"conflict", ConflictError(cause, "Transfer already processed"), CategoryDataConflict, http.StatusConflict, "Transfer already processed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var svcErr *ServiceError
			require.ErrorAs(t, tt.err, &svcErr)
			assert.Equal(t, tt.status, svcErr.StatusCode())
			assert.Equal(t, tt.message, svcErr.Message)
			assert.True(t, Is(fmt.Errorf("wrapped: %w", tt.err), tt.category))
			assert.ErrorIs(t, tt.err, cause)
			assert.Equal(t, "boom", tt.err.Error())
		})
	}
}

func TestServiceError_NilCause(t *testing.T) {
	err := BadRequestError(nil, "invalid address")
	assert.Equal(t, "bad request: invalid address", err.Error())

	err = GeneralError(nil)
	assert.Equal(t, "internal server error", err.Error())
	assert.False(t, Is(err, CategoryDataError))
	assert.False(t, Is(errors.New("plain"), CategoryGeneralError))
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "CategoryForbidden", CategoryForbidden.String())
	assert.Equal(t, "CategoryGeneralError", Category(99).String())
}
