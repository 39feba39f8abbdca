package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for retention run IDs.
	RunIDKey contextKey = "run_id"

	// AETitleKey is the context key for the AE title being processed.
	AETitleKey contextKey = "ae_title"

	// ObjectIDKey is the context key for stored object identifiers.
	ObjectIDKey contextKey = "object_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithAETitle adds an AE title to the context.
func WithAETitle(ctx context.Context, aeTitle string) context.Context {
	return context.WithValue(ctx, AETitleKey, aeTitle)
}

// GetAETitle retrieves the AE title from the context.
func GetAETitle(ctx context.Context) string {
	if aeTitle, ok := ctx.Value(AETitleKey).(string); ok {
		return aeTitle
	}
	return ""
}

// WithObjectID adds a stored object identifier to the context.
func WithObjectID(ctx context.Context, objectID string) context.Context {
	return context.WithValue(ctx, ObjectIDKey, objectID)
}

// GetObjectID retrieves the stored object identifier from the context.
func GetObjectID(ctx context.Context) string {
	if objectID, ok := ctx.Value(ObjectIDKey).(string); ok {
		return objectID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var fields []slog.Attr

	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, slog.String(string(RunIDKey), runID))
	}
	if aeTitle := GetAETitle(ctx); aeTitle != "" {
		fields = append(fields, slog.String(string(AETitleKey), aeTitle))
	}
	if objectID := GetObjectID(ctx); objectID != "" {
		fields = append(fields, slog.String(string(ObjectIDKey), objectID))
	}

	return fields
}

// contextHandler adds context fields to every record it handles.
type contextHandler struct {
	slog.Handler
}

// Handle implements slog.Handler.
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		r.AddAttrs(fields...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
