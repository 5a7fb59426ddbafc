package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeInvalidConfig,
				Message: "configuration is invalid",
			},
			expected: "INVALID_CONFIG: configuration is invalid",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInvalidExport,
				Message: "export is invalid",
				Cause:   errors.New("unexpected end of JSON input"),
			},
			expected: "INVALID_EXPORT: export is invalid: unexpected end of JSON input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternalError, "something went wrong")

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeValidationFailed, "validation failed")

	result := err.WithContext("field", "id").WithContext("value", "abc")

	assert.Equal(t, err, result)
	assert.Len(t, err.Context, 2)
	assert.Equal(t, "id", err.Context["field"])
	assert.Equal(t, "abc", err.Context["value"])
}

func TestWrapRetryable(t *testing.T) {
	cause := errors.New("database is locked")
	err := WrapRetryable(cause, ErrCodeDatabaseConnection, "open failed")

	assert.Equal(t, ErrCodeDatabaseConnection, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.True(t, err.Retryable)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable AppError", WrapRetryable(errors.New("temp"), ErrCodeDatabaseConnection, "db"), true},
		{"non-retryable AppError", New(ErrCodeInvalidInput, "bad input"), false},
		{"wrapped retryable AppError", fmt.Errorf("open: %w", WrapRetryable(errors.New("temp"), ErrCodeDatabaseConnection, "db")), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"AppError with code", New(ErrCodeMissingField, "no id"), ErrCodeMissingField},
		{"wrapped AppError", fmt.Errorf("read: %w", New(ErrCodeInvalidExport, "bad")), ErrCodeInvalidExport},
		{"standard error", errors.New("standard error"), ErrCodeInternalError},
		{"nil error", nil, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetCode(tt.err))
		})
	}
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "Please fix it", GetUserMessage(New(ErrCodeInvalidInput, "x").WithUserMessage("Please fix it")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeInternalError, "x")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("plain")))
}
