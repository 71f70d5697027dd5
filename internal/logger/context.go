package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const SessionIDKey contextKey = "session_id"
const CallIDKey contextKey = "call_id"

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CallIDKey, id)
}

func GetCallID(ctx context.Context) string {
	if id, ok := ctx.Value(CallIDKey).(string); ok {
		return id
	}
	return ""
}

// From returns the default logger annotated with the session and call ids carried by ctx.
func From(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := GetSessionID(ctx); id != "" {
		l = l.With("session_id", id)
	}
	if id := GetCallID(ctx); id != "" {
		l = l.With("call_id", id)
	}
	return l
}
