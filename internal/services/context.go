package services

import "context"

type contextKey string

const (
	projectKey   contextKey = "project"
	segmentKey   contextKey = "segment"
	requestIDKey contextKey = "request_id"
)

// WithProject annotates context with the project identifier.
func WithProject(ctx context.Context, project string) context.Context {
	if project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, project)
}

// ProjectFromContext extracts the project identifier if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSegment annotates context with the segment identifier being processed.
func WithSegment(ctx context.Context, segmentID string) context.Context {
	if segmentID == "" {
		return ctx
	}
	return context.WithValue(ctx, segmentKey, segmentID)
}

// SegmentFromContext returns the segment identifier if present.
func SegmentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(segmentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
