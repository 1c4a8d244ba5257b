package quality

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/pkgforge/internal/quality"

// Probe runs one check against a package. Expected failures are reported in
// the Result; an error means the probe could not run.
type Probe interface {
	Check() Check
	Run(ctx context.Context, pkg graph.Package) (Result, error)
}

type probeFunc struct {
	check Check
	fn    func(context.Context, graph.Package) (Result, error)
}

func (p probeFunc) Check() Check { return p.check }

func (p probeFunc) Run(ctx context.Context, pkg graph.Package) (Result, error) {
	return p.fn(ctx, pkg)
}

// ProbeFunc adapts a function into a Probe for check c.
func ProbeFunc(c Check, fn func(context.Context, graph.Package) (Result, error)) Probe {
	return probeFunc{check: c, fn: fn}
}

// Evaluator runs a quality pass. The build state machine depends on this
// rather than on *Gate.
type Evaluator interface {
	Evaluate(ctx context.Context, pkg graph.Package) Report
}

// Gate runs the eight checks and scores them.
type Gate struct {
	probes map[Check]Probe
	logger *logging.Logger

	checks metric.Int64Counter
	faults metric.Int64Counter
	scores metric.Int64Histogram
}

// GateOption configures a Gate.
type GateOption func(*gateOptions)

type gateOptions struct {
	logger *logging.Logger
	meter  metric.Meter
}

// WithLogger sets the gate logger.
func WithLogger(l *logging.Logger) GateOption {
	return func(o *gateOptions) { o.logger = l }
}

// WithMeter sets the meter used for gate metrics.
func WithMeter(m metric.Meter) GateOption {
	return func(o *gateOptions) { o.meter = m }
}

// NewGate builds a gate from probes. At most one probe per check is allowed;
// checks without a probe fail with a fault on every pass.
func NewGate(probes []Probe, opts ...GateOption) (*Gate, error) {
	o := gateOptions{logger: logging.Nop(), meter: otel.Meter(instrumentationName)}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gate{probes: make(map[Check]Probe, len(probes)), logger: o.logger}
	for _, p := range probes {
		c := p.Check()
		if !c.Valid() {
			return nil, fmt.Errorf("unknown quality check %q", c)
		}
		if _, dup := g.probes[c]; dup {
			return nil, fmt.Errorf("duplicate probe for check %s", c)
		}
		g.probes[c] = p
	}

	var err error
	if g.checks, err = o.meter.Int64Counter("pkgforge.quality.checks",
		metric.WithDescription("Quality checks run, by check and outcome"),
		metric.WithUnit("{check}")); err != nil {
		return nil, fmt.Errorf("create checks counter: %w", err)
	}
	if g.faults, err = o.meter.Int64Counter("pkgforge.quality.faults",
		metric.WithDescription("Quality probes that could not run"),
		metric.WithUnit("{fault}")); err != nil {
		return nil, fmt.Errorf("create faults counter: %w", err)
	}
	if g.scores, err = o.meter.Int64Histogram("pkgforge.quality.score",
		metric.WithDescription("Compliance scores"),
		metric.WithUnit("{point}")); err != nil {
		return nil, fmt.Errorf("create score histogram: %w", err)
	}
	return g, nil
}

// Evaluate runs every check against pkg and scores the results. It never
// fails: probe errors and panics become failing results.
func (g *Gate) Evaluate(ctx context.Context, pkg graph.Package) Report {
	report := Report{Package: pkg.Name, Results: make([]Result, 0, len(Checks))}
	passed := make(map[Check]bool, len(Checks))

	for _, c := range Checks {
		res := g.run(ctx, c, pkg)
		g.logger.Trace(ctx, "quality probe result",
			zap.String("check", string(c)),
			zap.Bool("passed", res.Passed),
			zap.Strings("details", res.Details),
			zap.Duration("duration", res.Duration))
		passed[c] = res.Passed
		report.Results = append(report.Results, res)
		g.checks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", string(c)),
			attribute.Bool("passed", res.Passed),
		))
	}

	report.Score = Compute(passed)
	g.scores.Record(ctx, int64(report.Score.Value), metric.WithAttributes(
		attribute.String("level", string(report.Score.Level)),
	))
	g.logger.Info(ctx, "quality pass scored",
		zap.Int("score", report.Score.Value),
		zap.String("level", string(report.Score.Level)),
		zap.Int("failed_checks", len(report.Score.Failed)),
	)
	return report
}

func (g *Gate) run(ctx context.Context, c Check, pkg graph.Package) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = g.fault(ctx, c, fmt.Errorf("probe panicked: %v", r))
		}
		res.Check = c
		res.Duration = time.Since(start)
	}()

	p, ok := g.probes[c]
	if !ok {
		return g.fault(ctx, c, fmt.Errorf("no probe configured"))
	}
	res, err := p.Run(ctx, pkg)
	if err != nil {
		return g.fault(ctx, c, err)
	}
	return res
}

func (g *Gate) fault(ctx context.Context, c Check, err error) Result {
	fault := &CheckExecutionFault{Check: c, Err: err}
	g.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("check", string(c))))
	g.logger.Warn(ctx, "quality probe fault", zap.String("check", string(c)), zap.Error(fault))
	return Result{Check: c, Passed: false, Fault: err.Error()}
}
