package middleware

import (
	"context"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
)

type contextKey string

const (
	ctxCaller    contextKey = "caller"
	ctxRequestID contextKey = "request_id"
)

// WithCaller stores the resolved caller on ctx.
func WithCaller(ctx context.Context, caller access.Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}

// CallerFromContext returns the caller resolved by Auth or OptionalAuth. The
// anonymous caller is returned when none is present. The request id is
// attached either way.
func CallerFromContext(ctx context.Context) access.Caller {
	if ctx == nil {
		return access.Anonymous()
	}
	caller, ok := ctx.Value(ctxCaller).(access.Caller)
	if !ok {
		caller = access.Anonymous()
	}
	caller.RequestID = RequestIDFromContext(ctx)
	return caller
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}
