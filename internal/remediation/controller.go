package remediation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/generation"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
)

const instrumentationName = "github.com/fyrsmithlabs/pkgforge/internal/remediation"

// MaxAttempts caps remediation cycles per package.
const MaxAttempts = 3

// Phase is reported through the progress callback.
type Phase string

const (
	PhaseRemediating  Phase = "REMEDIATING"
	PhaseQualityCheck Phase = "QUALITY_CHECK"
)

// Generator re-runs the generation loop for pkg with extra instructions.
type Generator interface {
	Generate(ctx context.Context, pkg graph.Package, instructions string) generation.Result
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, pkg graph.Package, instructions string) generation.Result

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, pkg graph.Package, instructions string) generation.Result {
	return f(ctx, pkg, instructions)
}

// Outcome is the end of a remediation run.
type Outcome struct {
	// Report is the last quality pass.
	Report   quality.Report
	Attempts int
	// Generation is set when a generation run ended without completing.
	Generation *generation.Result
	// Err is nil when the package is no longer blocked.
	Err error
}

// Controller runs bounded remediation.
type Controller struct {
	generator Generator
	gate      quality.Evaluator
	logger    *logging.Logger

	tracer   trace.Tracer
	meter    metric.Meter
	attempts metric.Int64Counter
	results  metric.Int64Counter
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMeter sets the meter used for remediation counters.
func WithMeter(m metric.Meter) Option {
	return func(c *Controller) { c.meter = m }
}

// WithTracer sets the tracer used for attempt spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// NewController creates a controller.
func NewController(gen Generator, gate quality.Evaluator, opts ...Option) *Controller {
	c := &Controller{
		generator: gen,
		gate:      gate,
		logger:    logging.Nop(),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initMetrics(c.meter)
	return c
}

func (c *Controller) initMetrics(meter metric.Meter) {
	var err error
	c.attempts, err = meter.Int64Counter(
		"pkgforge.remediation.attempts",
		metric.WithDescription("Remediation attempts started"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		c.logger.Warn(context.Background(), "failed to create attempts counter", zap.Error(err))
	}
	c.results, err = meter.Int64Counter(
		"pkgforge.remediation.results",
		metric.WithDescription("Remediation runs by result (recovered, exhausted, generation_failed)"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		c.logger.Warn(context.Background(), "failed to create results counter", zap.Error(err))
	}
}

// Remediate retries generation until the gate no longer blocks pkg or
// MaxAttempts is reached. blocked is the report that triggered remediation.
func (c *Controller) Remediate(ctx context.Context, pkg graph.Package, blocked quality.Report, progress func(Phase)) Outcome {
	if progress == nil {
		progress = func(Phase) {}
	}
	report := blocked
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Report: report, Attempts: attempt - 1, Err: err}
		}

		actx, span := c.tracer.Start(ctx, "remediation.attempt", trace.WithAttributes(
			attribute.String("package.name", pkg.Name),
			attribute.Int("attempt", attempt),
			attribute.Int("score.before", report.Score.Value),
		))
		c.add(actx, c.attempts)
		c.logger.Info(actx, "remediation attempt",
			zap.Int("attempt", attempt),
			zap.Int("score", report.Score.Value),
			zap.Int("failed_checks", len(report.Score.Failed)),
		)

		progress(PhaseRemediating)
		gen := c.generator.Generate(actx, pkg, Instructions(report, attempt))
		if gen.Status != generation.StatusCompleted {
			span.SetStatus(codes.Error, string(gen.Status))
			span.End()
			c.add(ctx, c.results, attribute.String("result", "generation_failed"))
			return Outcome{Report: report, Attempts: attempt, Generation: &gen, Err: gen.Err}
		}

		progress(PhaseQualityCheck)
		report = c.gate.Evaluate(actx, pkg)
		span.SetAttributes(attribute.Int("score.after", report.Score.Value))
		span.End()

		if !report.Score.Blocked() {
			c.logger.Info(ctx, "remediation recovered package",
				zap.Int("attempt", attempt),
				zap.Int("score", report.Score.Value),
			)
			c.add(ctx, c.results, attribute.String("result", "recovered"))
			return Outcome{Report: report, Attempts: attempt}
		}
	}

	c.add(ctx, c.results, attribute.String("result", "exhausted"))
	err := &RemediationExhaustedError{Attempts: MaxAttempts, Score: report.Score}
	c.logger.Warn(ctx, "remediation exhausted", zap.Error(err))
	return Outcome{Report: report, Attempts: MaxAttempts, Err: err}
}

func (c *Controller) add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// Instructions tells the agent which checks failed and why.
func Instructions(report quality.Report, attempt int) string {
	return fmt.Sprintf("Remediation attempt %d of %d. The quality gate needs a score of at least %d to publish.\n"+
		"Fix every failing check below, then send publish.\n\n%s",
		attempt, MaxAttempts, quality.AcceptableThreshold, report.Findings())
}
