package types

import "context"

// contextKey is a private type for context keys to avoid collisions with
// keys defined in other packages.
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a new context carrying the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID extracts the request correlation id from the context. It
// returns an empty string when no id was set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
