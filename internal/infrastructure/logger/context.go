package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// StepKey is the context key for the running pre-start step
	StepKey contextKey = "step"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithStep tags the context with the name of the running step and returns
// the enriched logger, which is also stored in the returned context.
func WithStep(ctx context.Context, step string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, StepKey, step)
	enriched := FromContext(ctx).With(zap.String("step", step))
	return WithContext(ctx, enriched), enriched
}

// GetStep retrieves the step name from context
func GetStep(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if step, ok := ctx.Value(StepKey).(string); ok {
		return step
	}
	return ""
}
