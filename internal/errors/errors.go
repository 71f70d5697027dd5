package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrConnection - session or audio resources could not be acquired during connect (surface to user, stay disconnected)
	ErrConnection = errors.New("connection failed")

	// ErrAudioPermission - microphone/speaker access refused by the platform (always wrapped together with ErrConnection on connect)
	ErrAudioPermission = errors.New("audio permission denied")

	// ErrAudioInit - audio engine failed to initialize for a reason other than permission
	ErrAudioInit = errors.New("audio initialization failed")

	// ErrUnexpectedDisconnect - remote side closed a connected session (one automatic reconnect)
	ErrUnexpectedDisconnect = errors.New("unexpected disconnect")

	// ErrToolExecution - a tool handler failed; converted to a structured result, never propagated
	ErrToolExecution = errors.New("tool execution failed")

	// ErrRecording - capture was lost or talk ended without a live session; recording stops, session stays up
	ErrRecording = errors.New("recording failed")

	// ErrPermissionDenied - backend refused the request
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput - invalid input (validation error shown to the caller)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrConflict - conflicting backend state
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (retry hint)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
