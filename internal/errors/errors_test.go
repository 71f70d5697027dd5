package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	m := NewDefaultErrorMapper()

	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrPermissionDenied},
		{http.StatusForbidden, ErrPermissionDenied},
		{http.StatusBadRequest, ErrInvalidInput},
		{http.StatusUnprocessableEntity, ErrInvalidInput},
		{http.StatusConflict, ErrConflict},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusTeapot, ErrInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := m.MapStatus(tt.code, "")
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), http.StatusText(tt.code))
		})
	}

	assert.Equal(t, "vehicle missing: not found", m.MapStatus(http.StatusNotFound, " vehicle missing ").Error())
}

func TestMapError(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.Nil(t, m.MapError(nil))
	assert.ErrorIs(t, m.MapError(context.Canceled), context.Canceled)
	assert.ErrorIs(t, m.MapError(context.DeadlineExceeded), ErrTransient)
	assert.ErrorIs(t, m.MapError(stdErrors.New("dial tcp: connection refused")), ErrTransient)
	assert.ErrorIs(t, m.MapError(stdErrors.New("record does not exist")), ErrNotFound)
	assert.ErrorIs(t, m.MapError(stdErrors.New("something odd")), ErrInternal)

	already := Connection("dial realtime")
	assert.Same(t, already, m.MapError(already))
}

func TestCategory(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.Equal(t, "", m.Category(nil))
	assert.Equal(t, "Unknown", m.Category(stdErrors.New("plain")))
	assert.Equal(t, "ErrAudioPermission", m.Category(WrapWithCategory(AudioPermission("mic"), "connect", ErrConnection)))
	assert.Equal(t, "ErrConnection", m.Category(Connection("socket")))
	assert.Equal(t, "ErrRecording", m.Category(Recording("capture lost")))
}

func TestWrapWithCategoryKeepsBothInChain(t *testing.T) {
	cause := AudioPermission("microphone blocked")
	err := WrapWithCategory(cause, "connect", ErrConnection)

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, ErrAudioPermission)
	assert.Nil(t, WrapWithCategory(nil, "connect", ErrConnection))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Contains(t, UserMessage(WrapWithCategory(AudioPermission("mic"), "connect", ErrConnection)), "Microphone access was denied")
	assert.Equal(t, "Could not connect to the assistant.", UserMessage(Connection("dial")))
	assert.Equal(t, "custom", UserMessage(fmt.Errorf("custom")))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(Transient("busy")))
	assert.True(t, IsRetryable(fmt.Errorf("update: %w", ErrConflict)))
	assert.False(t, IsRetryable(NotFound("gone")))
	assert.True(t, IsRetryable(NewDefaultErrorMapper().MapStatus(503, "")))
	assert.False(t, IsRetryable(NewDefaultErrorMapper().MapStatus(403, "")))
	assert.Nil(t, Wrap(nil, "x"))
	assert.ErrorIs(t, Wrap(Internal("x"), "outer"), ErrInternal)
}
