package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type documentCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	// Document being ingested or deleted
	if filename := DocumentFromContext(ctx); filename != "" {
		fields = append(fields, zap.String("document", filename))
	}

	return fields
}

// WithDocument attaches the source filename being processed to the context.
func WithDocument(ctx context.Context, filename string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, filename)
}

// DocumentFromContext returns the source filename from context, or "".
func DocumentFromContext(ctx context.Context) string {
	if f, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return f
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, defaulting to a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
