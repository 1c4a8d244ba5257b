package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/generation"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/remediation"
	"github.com/fyrsmithlabs/pkgforge/internal/report"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// PublishAttempts is how many times a package is offered to the publisher.
const PublishAttempts = 2

// Generator runs the generation loop for one package. *generation.Loop
// implements it.
type Generator interface {
	Run(ctx context.Context, in generation.Input) generation.Result
}

// LoopFactory returns the generation loop bound to pkg's workspace.
type LoopFactory func(pkg graph.Package) Generator

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithReports persists a record for every finished package.
func WithReports(sink report.Sink, runID string) Option {
	return func(r *Runner) {
		r.reports = sink
		r.runID = runID
	}
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner builds one package at a time; it is safe for concurrent use across
// packages.
type Runner struct {
	loops     LoopFactory
	gate      quality.Evaluator
	publisher Publisher
	plans     manifest.Plans

	logger  *logging.Logger
	reports report.Sink
	runID   string
	now     func() time.Time
}

var _ scheduler.Runner = (*Runner)(nil)

// NewRunner creates a runner.
func NewRunner(loops LoopFactory, gate quality.Evaluator, publisher Publisher, plans manifest.Plans, opts ...Option) *Runner {
	r := &Runner{
		loops:     loops,
		gate:      gate,
		publisher: publisher,
		plans:     plans,
		logger:    logging.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements scheduler.Runner.
func (r *Runner) Run(ctx context.Context, pkg graph.Package, progress func(scheduler.State)) scheduler.Outcome {
	if progress == nil {
		progress = func(scheduler.State) {}
	}
	ctx = logging.WithPackage(ctx, pkg.Name)
	rec := report.PackageRecord{RunID: r.runID, Package: pkg, StartedAt: r.now()}

	out := r.build(ctx, pkg, progress, &rec)

	rec.State = out.State
	rec.Attempts = out.Attempts
	rec.Score = out.Score
	rec.Version = out.Version
	rec.Cause = out.Cause
	rec.FinishedAt = r.now()
	if r.reports != nil {
		if err := r.reports.WritePackage(ctx, rec); err != nil {
			r.logger.Warn(ctx, "failed to write package report", zap.Error(err))
		}
	}

	fields := []zap.Field{zap.String("state", string(out.State)), zap.Int("attempts", out.Attempts)}
	if out.Score != nil {
		fields = append(fields, zap.Int("score", out.Score.Value))
	}
	if out.Cause != "" {
		fields = append(fields, zap.String("cause", out.Cause))
	}
	r.logger.Info(ctx, "package build finished", fields...)
	return out
}

func (r *Runner) build(ctx context.Context, pkg graph.Package, progress func(scheduler.State), rec *report.PackageRecord) scheduler.Outcome {
	plan, err := r.plans.Resolve(pkg.Name)
	if err != nil {
		return scheduler.Outcome{State: scheduler.StateFailed, Cause: err.Error()}
	}

	loop := r.loops(pkg)
	tracker := generation.NewFileFailureTracker()
	gen := loop.Run(ctx, generation.Input{
		Package:      pkg.Name,
		Plan:         plan.Plan,
		Instructions: plan.Instructions,
		Tracker:      tracker,
	})
	rec.Generation, rec.Iterations, rec.History = gen.Status, gen.Iterations, gen.History
	if out, done := generationOutcome(gen); done {
		return out
	}

	progress(scheduler.StateQualityCheck)
	rep := r.gate.Evaluate(ctx, pkg)
	rec.Quality = &rep
	attempts := 0

	if rep.Score.Blocked() {
		history := gen.History
		regenerate := remediation.GeneratorFunc(func(ctx context.Context, pkg graph.Package, instructions string) generation.Result {
			res := loop.Run(ctx, generation.Input{
				Package:      pkg.Name,
				Plan:         plan.Plan,
				Instructions: instructions,
				History:      history,
				Tracker:      tracker,
			})
			history = res.History
			rec.Generation, rec.History = res.Status, res.History
			rec.Iterations += res.Iterations
			return res
		})
		ctrl := remediation.NewController(regenerate, r.gate, remediation.WithLogger(r.logger))
		rem := ctrl.Remediate(ctx, pkg, rep, func(p remediation.Phase) {
			progress(scheduler.State(p))
		})
		attempts = rem.Attempts
		rep = rem.Report
		rec.Quality = &rem.Report

		if rem.Err != nil {
			score := rep.Score
			if rem.Generation != nil {
				out, _ := generationOutcome(*rem.Generation)
				out.Attempts, out.Score = attempts, &score
				return out
			}
			return scheduler.Outcome{State: scheduler.StateFailed, Attempts: attempts, Score: &score, Cause: rem.Err.Error()}
		}
	}

	score := rep.Score
	pub, err := r.publish(ctx, pkg)
	rec.URL = pub.URL
	if err != nil {
		return scheduler.Outcome{State: scheduler.StateFailed, Attempts: attempts, Score: &score, Cause: err.Error()}
	}
	return scheduler.Outcome{State: scheduler.StatePublished, Attempts: attempts, Score: &score, Version: pub.Version}
}

// generationOutcome maps a generation run that did not complete onto a
// terminal task state. done is false for completed runs.
func generationOutcome(res generation.Result) (out scheduler.Outcome, done bool) {
	cause := string(res.Status)
	if res.Err != nil {
		cause = res.Err.Error()
	}
	switch res.Status {
	case generation.StatusCompleted:
		return scheduler.Outcome{}, false
	case generation.StatusHumanIntervention:
		return scheduler.Outcome{State: scheduler.StateAwaitingHuman, Cause: cause}, true
	default:
		return scheduler.Outcome{State: scheduler.StateFailed, Cause: cause}, true
	}
}

// publish offers the package to the publisher up to PublishAttempts times.
// Only a published=false answer is retried.
func (r *Runner) publish(ctx context.Context, pkg graph.Package) (PublishResult, error) {
	var last PublishResult
	for attempt := 1; attempt <= PublishAttempts; attempt++ {
		res, err := r.publisher.Publish(ctx, pkg)
		if err != nil {
			return res, fmt.Errorf("publish: %w", err)
		}
		if res.Published {
			r.logger.Info(ctx, "package published",
				zap.String("version", res.Version),
				zap.Int("attempt", attempt),
			)
			return res, nil
		}
		last = res
		r.logger.Warn(ctx, "publish reported not published",
			zap.Int("attempt", attempt),
			zap.String("detail", res.Detail),
		)
	}
	cause := fmt.Sprintf("publish failed after %d attempts", PublishAttempts)
	if last.Detail != "" {
		cause += ": " + last.Detail
	}
	return last, errors.New(cause)
}
