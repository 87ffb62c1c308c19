package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad", nil), 400},
		{Unauthorized("who"), 401},
		{Permission("no"), 403},
		{NotFound("gone"), 404},
		{Conflict("dup"), 409},
		{Upstream("down", context.DeadlineExceeded), 503},
		{Internal("boom", nil), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestWrappedMatching(t *testing.T) {
	base := NotFound("document not found")
	wrapped := fmt.Errorf("delete: %w", base)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestUpstreamUnwrapsCause(t *testing.T) {
	err := Upstream("embedding provider timed out", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, err.Retryable())
	assert.Contains(t, err.Error(), "deadline exceeded")
}
