// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Run identifies one ingestion run in log output.
type Run struct {
	ID   string
	Mode string // zip, git, github, check
}

type runCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if run, ok := RunFromContext(ctx); ok {
		fields = append(fields, zap.String("run.id", run.ID))
		if run.Mode != "" {
			fields = append(fields, zap.String("source.mode", run.Mode))
		}
	}

	return fields
}

// WithRun attaches run identity to ctx. An empty ID leaves ctx unchanged.
func WithRun(ctx context.Context, run Run) context.Context {
	if run.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, runCtxKey{}, run)
}

// RunFromContext returns the run stored by WithRun.
func RunFromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runCtxKey{}).(Run)
	return run, ok
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
