// Package logging provides structured logging over zap.
//
// Loggers take a context on every call and inject correlation fields from
// it: trace_id/span_id from an active OTEL span, suite.run_id, package.name
// and turn.
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithPackage(ctx, "@acme/core")
//	logger.Info(ctx, "quality gate passed", zap.Int("score", 95))
//
// Output goes to stdout (JSON or console) and optionally to an OTEL log
// provider. Entries below Error are sampled; errors never are. String fields
// are redacted by key name and value pattern before encoding.
//
// Tests use NewTestLogger and its assertion helpers.
package logging
