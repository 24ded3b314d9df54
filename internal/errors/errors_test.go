package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrInvalidParams:      http.StatusBadRequest,
		ErrFileTypeNotAllowed: http.StatusBadRequest,
		ErrFileInfected:       http.StatusBadRequest,
		ErrFileSizeTooLarge:   http.StatusRequestEntityTooLarge,
		ErrUnauthorized:       http.StatusUnauthorized,
		ErrForbidden:          http.StatusForbidden,
		ErrDatasetNotFound:    http.StatusNotFound,
		ErrNoFileAttached:     http.StatusNotFound,
		ErrDatabaseQuery:      http.StatusInternalServerError,
		ErrFileScanFailed:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), "code %d", code)
	}
}

func TestGetAppErrorThroughWrapping(t *testing.T) {
	base := NewWithDetails(ErrFileTypeNotAllowed, "application/x-executable")
	wrapped := fmt.Errorf("staging: %w", base)

	appErr, ok := GetAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrFileTypeNotAllowed, appErr.Code)
	assert.True(t, HasCode(wrapped, ErrFileTypeNotAllowed))
	assert.False(t, HasCode(stderrors.New("plain"), ErrFileTypeNotAllowed))
}

func TestClientMessageHidesServerDetails(t *testing.T) {
	clientErr := NewWithDetails(ErrFileTypeNotAllowed, "application/x-executable")
	assert.Equal(t, "File type not allowed: application/x-executable", clientErr.ClientMessage())

	serverErr := Wrap(ErrDatabaseInsert, stderrors.New("disk I/O error"))
	assert.Equal(t, "Database insert error", serverErr.ClientMessage())
	assert.Contains(t, serverErr.Error(), "disk I/O error")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(ErrDatabaseQuery, cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	base := New(ErrInvalidParams)
	detailed := base.WithDetails("title is required")
	assert.Empty(t, base.Details)
	assert.Equal(t, "title is required", detailed.Details)
}
