package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/pkgforge/internal/generation"

const (
	// DefaultMaxIterations bounds a loop run when no limit is configured.
	DefaultMaxIterations = 50

	// MaxConsecutiveLintFailures pauses the loop for a human.
	MaxConsecutiveLintFailures = 3
)

// Status is how a loop run ended.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusFileLoopTerminated  Status = "file_loop_terminated"
	StatusIterationsExhausted Status = "iterations_exhausted"
	StatusHumanIntervention   Status = "human_intervention"
	// StatusCancelled means the context ended the run.
	StatusCancelled Status = "cancelled"
)

// Request is everything the agent sees on one turn.
type Request struct {
	Package      string
	Plan         string
	Instructions string
	History      []ActionHistoryEntry
	// Context is the codebase summary, or the meta-correction directive when
	// MetaCorrection is set.
	Context        string
	MetaCorrection bool
	Turn           int
}

// Agent returns exactly one command per call. It is never called
// concurrently for the same package.
type Agent interface {
	NextCommand(ctx context.Context, req Request) (Command, error)
}

// Tools executes commands against the package workspace.
type Tools interface {
	ApplyFileChanges(ctx context.Context, files []FileChange) Outcome
	ValidateManifest(ctx context.Context) Outcome
	CheckLicenseHeaders(ctx context.Context) Outcome
	RunLint(ctx context.Context) Outcome
	RunTests(ctx context.Context) Outcome
	// Publish runs the readiness check; Completed is set when it passes.
	Publish(ctx context.Context) Outcome
	// Summary describes the current codebase for the agent.
	Summary(ctx context.Context) (string, error)
}

// Input starts a loop run.
type Input struct {
	Package      string
	Plan         string
	Instructions string
	// History seeds the action history, for example from an earlier
	// remediation attempt.
	History []ActionHistoryEntry
	// Tracker carries per-file failure state across runs for one package.
	// A fresh tracker is used when nil.
	Tracker *FileFailureTracker
}

// Result is the end state of a run.
type Result struct {
	Status     Status
	History    []ActionHistoryEntry
	Iterations int
	// Err is nil for StatusCompleted.
	Err error
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxIterations sets the turn limit.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) { l.maxIterations = n }
}

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *logging.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// WithLoopMeter sets the meter for loop metrics.
func WithLoopMeter(m metric.Meter) LoopOption {
	return func(l *Loop) { l.meter = m }
}

// WithLoopClock overrides the timestamp source for history entries.
func WithLoopClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

// Loop runs the turn-based generation protocol for one package at a time.
type Loop struct {
	agent         Agent
	tools         Tools
	maxIterations int
	logger        *logging.Logger
	meter         metric.Meter
	now           func() time.Time

	turns metric.Int64Counter
	metas metric.Int64Counter
}

// NewLoop creates a loop.
func NewLoop(agent Agent, tools Tools, opts ...LoopOption) *Loop {
	l := &Loop{
		agent:         agent,
		tools:         tools,
		maxIterations: DefaultMaxIterations,
		logger:        logging.Nop(),
		meter:         otel.Meter(instrumentationName),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxIterations < 1 {
		l.maxIterations = DefaultMaxIterations
	}

	var err error
	if l.turns, err = l.meter.Int64Counter("pkgforge.generation.turns",
		metric.WithDescription("Generation loop turns, by command and outcome"),
		metric.WithUnit("{turn}")); err != nil {
		l.logger.Warn(context.Background(), "failed to create turns counter", zap.Error(err))
	}
	if l.metas, err = l.meter.Int64Counter("pkgforge.generation.meta_corrections",
		metric.WithDescription("Meta-correction directives sent to the agent"),
		metric.WithUnit("{directive}")); err != nil {
		l.logger.Warn(context.Background(), "failed to create meta-corrections counter", zap.Error(err))
	}
	return l
}

// Run drives the agent until one of the termination conditions holds.
func (l *Loop) Run(ctx context.Context, in Input) Result {
	tracker := in.Tracker
	if tracker == nil {
		tracker = NewFileFailureTracker()
	}
	history := append([]ActionHistoryEntry(nil), in.History...)
	lintFailures := 0
	directive := ""

	for turn := 1; turn <= l.maxIterations; turn++ {
		tctx := logging.WithTurn(ctx, turn)
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusCancelled, History: history, Iterations: turn - 1, Err: err}
		}

		req := Request{
			Package:      in.Package,
			Plan:         in.Plan,
			Instructions: in.Instructions,
			History:      append([]ActionHistoryEntry(nil), history...),
			Turn:         turn,
		}
		if directive != "" {
			req.Context, req.MetaCorrection = directive, true
			directive = ""
		} else {
			summary, err := l.tools.Summary(tctx)
			if err != nil {
				l.logger.Warn(tctx, "codebase summary unavailable", zap.Error(err))
				summary = "(codebase summary unavailable: " + err.Error() + ")"
			}
			req.Context = summary
		}

		kind, summary, out := l.turn(tctx, req)
		if ctx.Err() != nil && !out.Success {
			return Result{Status: StatusCancelled, History: history, Iterations: turn - 1, Err: ctx.Err()}
		}
		history = append(history, ActionHistoryEntry{
			Turn:           turn,
			Command:        kind,
			Summary:        summary,
			Outcome:        out,
			MetaCorrection: req.MetaCorrection,
			At:             l.now(),
		})
		l.countTurn(tctx, kind, out.Success)

		if kind == KindPublish && out.Success && out.Completed {
			l.logger.Info(tctx, "generation completed", zap.Int("iterations", turn))
			return Result{Status: StatusCompleted, History: history, Iterations: turn}
		}

		next, terminated := l.track(tctx, tracker, kind, out)
		if terminated != nil {
			l.logger.Error(tctx, "file loop terminated",
				zap.String("file", terminated.Path),
				zap.Int("attempts", terminated.Attempts),
			)
			return Result{Status: StatusFileLoopTerminated, History: history, Iterations: turn, Err: terminated}
		}
		directive = next

		if out.Success {
			lintFailures = 0
		} else if kind == KindRunLint {
			lintFailures++
		}

		if turn == l.maxIterations {
			break
		}
		if lintFailures >= MaxConsecutiveLintFailures {
			l.logger.Warn(tctx, "lint keeps failing, requesting human intervention",
				zap.Int("consecutive_failures", lintFailures))
			return Result{Status: StatusHumanIntervention, History: history, Iterations: turn, Err: ErrHumanInterventionRequested}
		}
	}

	l.logger.Warn(ctx, "generation loop exhausted iterations", zap.Int("max_iterations", l.maxIterations))
	return Result{
		Status:     StatusIterationsExhausted,
		History:    history,
		Iterations: l.maxIterations,
		Err:        fmt.Errorf("%w after %d turns", ErrIterationsExhausted, l.maxIterations),
	}
}

// turn asks the agent for a command and executes it. Agent errors and
// undecodable commands become failed turns.
func (l *Loop) turn(ctx context.Context, req Request) (CommandKind, string, Outcome) {
	cmd, err := l.agent.NextCommand(ctx, req)
	if err != nil {
		l.logger.Warn(ctx, "agent returned no usable command", zap.Error(err))
		return KindInvalid, string(KindInvalid), Failed("agent: "+err.Error(), nil)
	}
	if cmd == nil {
		return KindInvalid, string(KindInvalid), Failed("agent returned no command", nil)
	}
	l.logger.Debug(ctx, "executing command", zap.String("command", string(cmd.Kind())))
	return cmd.Kind(), Describe(cmd), l.execute(ctx, cmd)
}

func (l *Loop) execute(ctx context.Context, cmd Command) Outcome {
	switch c := cmd.(type) {
	case ApplyFileChanges:
		return l.tools.ApplyFileChanges(ctx, c.Files)
	case ValidateManifest:
		return l.tools.ValidateManifest(ctx)
	case CheckLicenseHeaders:
		return l.tools.CheckLicenseHeaders(ctx)
	case RunLint:
		return l.tools.RunLint(ctx)
	case RunTests:
		return l.tools.RunTests(ctx)
	case Publish:
		return l.tools.Publish(ctx)
	default:
		return Failed(fmt.Sprintf("unsupported command %T", cmd), nil)
	}
}

// wholePackageChecks report on every file they cover, so a tracked file they
// no longer mention has passed.
var wholePackageChecks = map[CommandKind]bool{
	KindValidateManifest:    true,
	KindCheckLicenseHeaders: true,
	KindRunLint:             true,
	KindRunTests:            true,
}

// track folds an outcome into the per-file tracker. It returns the next
// meta-correction directive, if any, or the termination error.
func (l *Loop) track(ctx context.Context, t *FileFailureTracker, kind CommandKind, out Outcome) (string, *FileLoopTerminatedError) {
	for _, p := range out.SucceededFiles {
		t.RecordSuccess(p, kind)
	}
	if wholePackageChecks[kind] {
		t.ClearSource(kind, out.FileErrors)
	}

	var directives []string
	for _, path := range out.failedPaths() {
		switch t.RecordFailure(path, kind, out.FileErrors[path]) {
		case VerdictTerminate:
			e, _ := t.Entry(path)
			return "", &FileLoopTerminatedError{Path: path, Attempts: e.Count, LastError: e.LastError()}
		case VerdictMetaCorrect:
			e, _ := t.Entry(path)
			directives = append(directives, MetaCorrectionDirective(e))
			if l.metas != nil {
				l.metas.Add(ctx, 1)
			}
			l.logger.Warn(ctx, "sending meta-correction directive",
				zap.String("file", path),
				zap.Int("identical_failures", e.Count),
			)
		}
	}
	return strings.Join(directives, "\n---\n"), nil
}

func (l *Loop) countTurn(ctx context.Context, kind CommandKind, ok bool) {
	if l.turns == nil {
		return
	}
	l.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", string(kind)),
		attribute.Bool("success", ok),
	))
}
