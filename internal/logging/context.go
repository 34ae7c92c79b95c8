package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem emitting a record.
	FieldComponent = "component"
	// FieldRunID identifies one daemon process run.
	FieldRunID = "run_id"
	// FieldSessionID identifies one recording session (one meeting).
	FieldSessionID = "session_id"
	// FieldSourceID is the opaque fragment source identity.
	FieldSourceID = "source_id"
	// FieldLineIndex is a ledger position.
	FieldLineIndex = "line_index"
	// FieldDecision is the consolidation outcome for a fragment.
	FieldDecision = "decision"
	// FieldSink names an export destination.
	FieldSink = "sink"
	// FieldRemote is the peer address of a network client.
	FieldRemote = "remote"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type sessionKey struct{}

// WithSessionID stores a recording session ID on ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the recording session ID stored on ctx.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns logger augmented with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		return logger.With(String(FieldSessionID, id))
	}
	return logger
}
