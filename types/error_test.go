package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorString(t *testing.T) {
	err := NewError(ErrRateLimited, "daily cap reached")
	assert.Equal(t, "[RATE_LIMITED] daily cap reached", err.Error())

	wrapped := NewError(ErrStoreUnavailable, "history append failed").WithCause(fmt.Errorf("dial tcp: refused"))
	assert.Contains(t, wrapped.Error(), "STORE_UNAVAILABLE")
	assert.Contains(t, wrapped.Error(), "dial tcp")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrInternalError, "decision failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestError_Retryable(t *testing.T) {
	err := NewError(ErrContactBusy, "lock held").WithRetryable(true)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrContactBusy, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
