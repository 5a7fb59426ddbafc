package database

import (
	"context"
	stderrors "errors"
	"strings"

	"tgblog/internal/errors"
)

// dbError wraps a driver error, marking lock and I/O failures retryable.
func dbError(operation string, err error) *errors.AppError {
	appErr := errors.NewDatabaseError(operation, err)
	appErr.Retryable = isRetryableDBError(err)
	return appErr
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	// Context timeout/cancellation are not retryable by us
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()

	// Another process holds the write lock
	if strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "database table is locked") {
		return true
	}

	// Disk I/O errors might be transient
	if strings.Contains(errStr, "disk I/O error") {
		return true
	}

	// Constraint and schema errors will fail the same way again
	return false
}
