package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"missing build request is a bad request", ErrBuildRequestNotFound, http.StatusBadRequest},
		{"token missing", ErrTokenMissing, http.StatusUnauthorized},
		{"generation in progress", ErrGenerationInProgress, http.StatusConflict},
		{"generation failed", ErrGenerationFailed, http.StatusInternalServerError},
		{"project not found", ErrProjectNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus)
		})
	}
}

func TestWithErrorDoesNotMutateSentinel(t *testing.T) {
	cause := stderrors.New("provider down")
	wrapped := ErrGenerationFailed.WithError(cause)

	assert.Nil(t, ErrGenerationFailed.Err)
	assert.ErrorIs(t, wrapped, cause)
}

func TestAsAppError_WalksChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrProjectNotFound)

	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeProjectNotFound, AsAppError(err).Code)
	assert.True(t, IsCode(err, CodeProjectNotFound))
	assert.Equal(t, CodeUnknown, AsAppError(stderrors.New("plain")).Code)
}
