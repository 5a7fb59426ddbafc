package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"tgblog/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "locked", err: stderrors.New("database is locked"), want: true},
		{name: "table locked", err: stderrors.New("database table is locked"), want: true},
		{name: "disk io", err: stderrors.New("disk I/O error"), want: true},
		{name: "wrapped locked", err: errors.NewDatabaseError("insert post", stderrors.New("database is locked")), want: true},
		{name: "constraint", err: stderrors.New("UNIQUE constraint failed: posts.id"), want: false},
		{name: "canceled", err: fmt.Errorf("query: %w", context.Canceled), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableDBError(tt.err))
		})
	}
}

func TestDBError(t *testing.T) {
	locked := dbError("insert post", stderrors.New("database is locked"))
	assert.True(t, errors.IsRetryable(locked))
	assert.Equal(t, errors.ErrCodeDatabaseQuery, locked.Code)

	constraint := dbError("insert post", stderrors.New("UNIQUE constraint failed: posts.id"))
	assert.False(t, errors.IsRetryable(constraint))
}
