package services

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	displayCodeKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithJobID annotates context with the job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, jobIDKey) }

// WithDisplayCode annotates context with the short human-facing job code.
func WithDisplayCode(ctx context.Context, code string) context.Context {
	return withValue(ctx, displayCodeKey, code)
}

func DisplayCodeFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, displayCodeKey) }

// WithRequestID annotates context with the API request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, requestIDKey) }
