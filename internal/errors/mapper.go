package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorMapper maps external errors to the torque error taxonomy
type ErrorMapper interface {
	MapError(err error) error
	MapStatus(code int, message string) error
	Category(err error) string
}

// DefaultErrorMapper implements the torque error taxonomy mapping
type DefaultErrorMapper struct{}

// NewDefaultErrorMapper creates a new error mapper
func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError maps transport and backend errors to torque error categories
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate context errors as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	// Already categorized
	if m.Category(err) != "Unknown" {
		return err
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("resource not found: %w", ErrNotFound)

	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "not authorized"), strings.Contains(errStr, "notallowed"):
		return fmt.Errorf("access denied: %w", ErrPermissionDenied)

	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "forbidden"):
		return fmt.Errorf("access denied: %w", ErrPermissionDenied)

	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w", ErrTransient)

	case strings.Contains(errStr, "invalid input"), strings.Contains(errStr, "bad request"):
		return fmt.Errorf("invalid request: %w", ErrInvalidInput)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w", ErrTransient)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"):
		return fmt.Errorf("network error: %w", ErrTransient)

	case strings.Contains(errStr, "conflict"), strings.Contains(errStr, "already exists"):
		return fmt.Errorf("conflict: %w", ErrConflict)

	default:
		return fmt.Errorf("internal error: %w", ErrInternal)
	}
}

// MapStatus maps a backend HTTP status code to a torque error category
func (m *DefaultErrorMapper) MapStatus(code int, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(code)
	}

	switch {
	case code == http.StatusNotFound:
		return NotFound(message)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return PermissionDenied(message)
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return InvalidInput(message)
	case code == http.StatusConflict:
		return fmt.Errorf("%s: %w", message, ErrConflict)
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return Transient(message)
	default:
		return Internal(message)
	}
}


// Category returns the torque error category for an error
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAudioPermission):
		return "ErrAudioPermission"
	case errors.Is(err, ErrAudioInit):
		return "ErrAudioInit"
	case errors.Is(err, ErrConnection):
		return "ErrConnection"
	case errors.Is(err, ErrUnexpectedDisconnect):
		return "ErrUnexpectedDisconnect"
	case errors.Is(err, ErrRecording):
		return "ErrRecording"
	case errors.Is(err, ErrToolExecution):
		return "ErrToolExecution"
	case errors.Is(err, ErrPermissionDenied):
		return "ErrPermissionDenied"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	case errors.Is(err, ErrNotFound):
		return "ErrNotFound"
	case errors.Is(err, ErrConflict):
		return "ErrConflict"
	case errors.Is(err, ErrTransient):
		return "ErrTransient"
	case errors.Is(err, ErrInternal):
		return "ErrInternal"
	default:
		return "Unknown"
	}
}

// UserMessage returns the text shown to the operator for a connect-level failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAudioPermission):
		return "Microphone access was denied. Allow audio access and try again."
	case errors.Is(err, ErrAudioInit):
		return "The audio device could not be started."
	case errors.Is(err, ErrUnexpectedDisconnect):
		return "The assistant connection dropped."
	case errors.Is(err, ErrConnection):
		return "Could not connect to the assistant."
	case errors.Is(err, ErrRecording):
		return "Recording stopped unexpectedly."
	default:
		return err.Error()
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory wraps an error with a category while keeping the cause in the chain
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", message, category, err)
}

// Connection wraps error as connection failure
func Connection(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConnection)
}

// AudioPermission wraps error as audio permission failure
func AudioPermission(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAudioPermission)
}

// AudioInit wraps error as generic audio initialization failure
func AudioInit(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAudioInit)
}

// Recording wraps error as recording failure
func Recording(message string) error {
	return fmt.Errorf("%s: %w", message, ErrRecording)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// PermissionDenied wraps error as permission denied
func PermissionDenied(message string) error {
	return fmt.Errorf("%s: %w", message, ErrPermissionDenied)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps error as transient
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// IsRetryable checks if an error is transient or conflict related, indicating it can be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConflict)
}
