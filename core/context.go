package core

import "context"

// Context keys for plan options
type contextKey string

const (
	runIDKey          contextKey = "runID"
	suppressHeaderKey contextKey = "suppressHeader"
)

// withRunID attaches the plan run ID to the context
func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// runIDFromContext returns the plan run ID from context
func runIDFromContext(ctx context.Context) string {
	val, ok := ctx.Value(runIDKey).(string)
	if !ok {
		return ""
	}
	return val
}

// WithSuppressHeader marks the context so that plan headers are not printed
func WithSuppressHeader(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressHeaderKey, true)
}

// shouldSuppressHeader returns whether headers should be suppressed from context
func shouldSuppressHeader(ctx context.Context) bool {
	val := ctx.Value(suppressHeaderKey)
	if val == nil {
		return false // default: show headers
	}
	suppress, ok := val.(bool)
	return ok && suppress
}
