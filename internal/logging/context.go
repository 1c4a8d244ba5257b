package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context: the OTEL span, the
// suite run, the package being built and the generation turn.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if runID, ok := ctx.Value(runCtxKey{}).(string); ok {
		fields = append(fields, zap.String("suite.run_id", runID))
	}
	if pkg, ok := ctx.Value(packageCtxKey{}).(string); ok {
		fields = append(fields, zap.String("package.name", pkg))
	}
	if turn, ok := ctx.Value(turnCtxKey{}).(int); ok {
		fields = append(fields, zap.Int("turn", turn))
	}
	return fields
}

type runCtxKey struct{}
type packageCtxKey struct{}
type turnCtxKey struct{}
type loggerCtxKey struct{}

// WithRunID tags ctx with the suite run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the suite run identifier, if any.
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithPackage tags ctx with the package being built.
func WithPackage(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, packageCtxKey{}, name)
}

// PackageFromContext returns the package name, if any.
func PackageFromContext(ctx context.Context) string {
	s, _ := ctx.Value(packageCtxKey{}).(string)
	return s
}

// WithTurn tags ctx with the generation loop turn number.
func WithTurn(ctx context.Context, turn int) context.Context {
	return context.WithValue(ctx, turnCtxKey{}, turn)
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
