package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/report"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// PhaseProgress reports a phase transition.
type PhaseProgress struct {
	RunID      string      `json:"run_id"`
	Phase      Phase       `json:"phase"`
	Status     PhaseStatus `json:"status"`
	Message    string      `json:"message"`
	Percentage int         `json:"percentage"`
}

// ProgressCallback receives progress updates during a run.
type ProgressCallback func(progress PhaseProgress)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithGates replaces the MECE_VALIDATION gates.
func WithGates(gates ...PhaseGate) Option {
	return func(o *Orchestrator) { o.gates = gates }
}

// WithReports writes the suite record when a run ends.
func WithReports(sink report.Sink) Option {
	return func(o *Orchestrator) { o.reports = sink }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressCallback) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator sequences the suite phases.
type Orchestrator struct {
	lookup  graph.Lookup
	plans   manifest.Plans
	builder Builder

	gates    []PhaseGate
	reports  report.Sink
	progress ProgressCallback
	logger   *logging.Logger
	now      func() time.Time
}

// New creates an orchestrator. lookup serves package metadata for discovery
// and plans are the workspace plans that requests may override.
func New(lookup graph.Lookup, plans manifest.Plans, builder Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lookup:  lookup,
		plans:   plans,
		builder: builder,
		gates:   DefaultGates(),
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Execute runs the suite. The returned state is never nil; the error is a
// *PhaseError naming the failing phase, or nil when the suite completed.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*SuiteState, error) {
	if req.RunID == "" {
		req.RunID = NewRunID()
	}
	ctx = logging.WithRunID(ctx, req.RunID)
	state := newSuiteState(req, o.now())

	handlers := map[Phase]func(context.Context, *SuiteState, Request) (string, error){
		PhaseDiscovery:      o.discover,
		PhasePlanning:       o.plan,
		PhaseMECEValidation: o.validate,
		PhaseBuild:          o.build,
		PhaseQuality:        o.checkQuality,
		PhasePublish:        o.checkPublished,
	}

	phases := AllPhases()
	var runErr error
	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			runErr = &PhaseError{Phase: phase, Err: err}
			break
		}
		if err := state.CanTransition(phase); err != nil {
			runErr = &PhaseError{Phase: phase, Err: err}
			break
		}
		o.report(PhaseProgress{
			RunID:      state.RunID,
			Phase:      phase,
			Status:     StatusInProgress,
			Message:    fmt.Sprintf("Starting phase: %s", phase),
			Percentage: (i * 100) / len(phases),
		})

		result := &PhaseResult{Phase: phase, Status: StatusInProgress, StartedAt: o.now()}
		state.Results[phase] = result
		state.Phase = phase

		output, err := handlers[phase](ctx, state, req)
		result.CompletedAt = o.now()
		result.Output = output
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			runErr = &PhaseError{Phase: phase, Err: err}
			break
		}
		result.Status = StatusCompleted
		o.logger.Info(ctx, "suite phase completed",
			zap.String("phase", string(phase)),
			zap.Duration("duration", result.CompletedAt.Sub(result.StartedAt)),
		)
		o.report(PhaseProgress{
			RunID:      state.RunID,
			Phase:      phase,
			Status:     StatusCompleted,
			Message:    fmt.Sprintf("Completed phase: %s", phase),
			Percentage: ((i + 1) * 100) / len(phases),
		})
	}

	state.FinishedAt = o.now()
	if runErr != nil {
		var pe *PhaseError
		errors.As(runErr, &pe)
		state.Phase = PhaseFailed
		state.Cause = runErr.Error()
		o.logger.Error(ctx, "suite run failed",
			zap.String("phase", string(pe.Phase)),
			zap.Error(pe.Err),
		)
		o.report(PhaseProgress{RunID: state.RunID, Phase: PhaseFailed, Status: StatusFailed, Message: state.Cause})
	} else {
		state.Phase = PhaseComplete
		o.logger.Info(ctx, "suite run complete", zap.Int("packages", len(state.Tasks)))
		o.report(PhaseProgress{RunID: state.RunID, Phase: PhaseComplete, Status: StatusCompleted, Message: "Suite complete", Percentage: 100})
	}
	o.writeReport(ctx, state)
	return state, runErr
}

func (o *Orchestrator) discover(_ context.Context, state *SuiteState, req Request) (string, error) {
	lookup := o.lookup
	if len(req.Plans) > 0 || len(o.plans) > 0 {
		lookup = o.plans.Merge(req.Plans).Augment(lookup)
	}
	g, err := graph.Resolve(lookup, req.Roots...)
	if err != nil {
		return "", err
	}
	state.Graph = g
	return fmt.Sprintf("resolved %d package(s) in %d layer(s)", g.Len(), len(g.Layers())), nil
}

func (o *Orchestrator) plan(_ context.Context, state *SuiteState, req Request) (string, error) {
	plans := o.plans.Merge(req.Plans)
	if missing := plans.Missing(state.Graph.Order()); len(missing) > 0 {
		return "", fmt.Errorf("%w for %s", ErrNoPlan, strings.Join(missing, ", "))
	}
	state.Plans = plans
	return fmt.Sprintf("planned %d package(s)", state.Graph.Len()), nil
}

func (o *Orchestrator) validate(ctx context.Context, state *SuiteState, _ Request) (string, error) {
	var found []Violation
	for _, gate := range o.gates {
		vs, err := gate.Check(ctx, state)
		if err != nil {
			return "", fmt.Errorf("gate %s check failed: %w", gate.Name(), err)
		}
		found = append(found, vs...)
	}
	state.Violations = append(state.Violations, found...)
	for _, v := range found {
		if v.Severity == SeverityWarning {
			o.logger.Warn(ctx, "suite validation warning",
				zap.String("package", v.Package),
				zap.String("violation", string(v.Type)),
			)
		}
	}
	if hasBlockingViolation(found) {
		return "", fmt.Errorf("%w: %s", ErrMECEViolation, describeViolations(found))
	}
	return fmt.Sprintf("%d gate(s) passed with %d warning(s)", len(o.gates), len(found)), nil
}

func (o *Orchestrator) build(ctx context.Context, state *SuiteState, _ Request) (string, error) {
	tasks, err := o.builder.Build(ctx, state.RunID, state.Graph, state.Plans)
	state.Tasks = tasks
	if err != nil {
		return "", err
	}
	return describeTotals(scheduler.Totals(tasks)), nil
}

// checkQuality requires every package that ran to have cleared the quality
// gate.
func (o *Orchestrator) checkQuality(_ context.Context, state *SuiteState, _ Request) (string, error) {
	var blocked []string
	for _, t := range state.Tasks {
		if t.State == scheduler.StateSkipped {
			continue
		}
		if t.Score == nil || t.Score.Blocked() {
			blocked = append(blocked, t.Name())
		}
	}
	if len(blocked) > 0 {
		return "", fmt.Errorf("%w: quality not cleared by %s", ErrSuiteIncomplete, strings.Join(blocked, ", "))
	}
	return fmt.Sprintf("%d package(s) cleared quality", len(state.Tasks)), nil
}

// checkPublished requires every package that was not skipped to be
// published.
func (o *Orchestrator) checkPublished(_ context.Context, state *SuiteState, _ Request) (string, error) {
	var pending []string
	for _, t := range state.Tasks {
		if t.State == scheduler.StateSkipped || t.State == scheduler.StatePublished {
			continue
		}
		pending = append(pending, fmt.Sprintf("%s (%s)", t.Name(), t.State))
	}
	if len(pending) > 0 {
		return "", fmt.Errorf("%w: not published: %s", ErrSuiteIncomplete, strings.Join(pending, ", "))
	}
	return fmt.Sprintf("%d package(s) published", scheduler.Totals(state.Tasks)[scheduler.StatePublished]), nil
}

func (o *Orchestrator) report(p PhaseProgress) {
	if o.progress != nil {
		o.progress(p)
	}
}

func (o *Orchestrator) writeReport(ctx context.Context, state *SuiteState) {
	if o.reports == nil {
		return
	}
	rec := report.SuiteRecord{
		RunID:      state.RunID,
		Roots:      state.Roots,
		Phase:      string(state.Phase),
		Cause:      state.Cause,
		Tasks:      state.Tasks,
		Totals:     state.Totals(),
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
	}
	if state.Graph != nil {
		rec.Layers = state.Graph.Layers()
	}
	// The run's context may already be cancelled; the record is still wanted.
	if err := o.reports.WriteSuite(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn(ctx, "failed to write suite report", zap.Error(err))
	}
}

func describeTotals(totals map[scheduler.State]int) string {
	var parts []string
	for _, s := range scheduler.States {
		if n := totals[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	if len(parts) == 0 {
		return "no packages built"
	}
	return strings.Join(parts, " ")
}
