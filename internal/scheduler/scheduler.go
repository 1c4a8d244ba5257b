package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// DefaultMaxConcurrentBuilds is used when no ceiling is configured.
const DefaultMaxConcurrentBuilds = 4

// ErrAlreadySubmitted is returned when Submit is called twice.
var ErrAlreadySubmitted = errors.New("scheduler: graph already submitted")

// ErrNotSubmitted is returned by Join before Submit.
var ErrNotSubmitted = errors.New("scheduler: no graph submitted")

// Runner builds one package. progress reports intermediate states
// (QUALITY_CHECK, REMEDIATING); the returned Outcome must carry a terminal
// state. Runners never touch scheduling state.
type Runner interface {
	Run(ctx context.Context, pkg graph.Package, progress func(State)) Outcome
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
	return f(ctx, pkg, progress)
}

// Event is a state change observed by the scheduler loop.
type Event struct {
	Package string
	State   State
	Cause   string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxConcurrent sets the concurrency ceiling.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) { s.max = n }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the clock used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithEvents registers a callback invoked from the scheduler loop for every
// state change. It must not block.
func WithEvents(fn func(Event)) Option {
	return func(s *Scheduler) { s.onEvent = fn }
}

// Scheduler runs a submitted graph to completion.
type Scheduler struct {
	runner  Runner
	max     int
	logger  *logging.Logger
	now     func() time.Time
	onEvent func(Event)

	mu        sync.Mutex
	submitted bool
	done      chan struct{}
	tasks     []Task
	err       error
}

// New creates a scheduler that builds packages with runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		max:    DefaultMaxConcurrentBuilds,
		logger: logging.Nop(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.max < 1 {
		s.max = 1
	}
	return s
}

// Submit starts scheduling g in the background. Use Join to wait for the
// final task states.
func (s *Scheduler) Submit(ctx context.Context, g *graph.Graph) error {
	if g == nil {
		return errors.New("scheduler: graph is nil")
	}
	if s.runner == nil {
		return errors.New("scheduler: runner is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return ErrAlreadySubmitted
	}
	s.submitted = true

	coord := NewCoordinator(g, s.max, s.now)
	go s.loop(ctx, coord)
	return nil
}

// Join blocks until the schedule completes and returns every task in
// discovery order. The error is non-nil only when ctx was cancelled before
// every task could start.
func (s *Scheduler) Join() ([]Task, error) {
	s.mu.Lock()
	submitted := s.submitted
	s.mu.Unlock()
	if !submitted {
		return nil, ErrNotSubmitted
	}
	<-s.done
	return s.tasks, s.err
}

// Run submits g and waits for it.
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph) ([]Task, error) {
	if err := s.Submit(ctx, g); err != nil {
		return nil, err
	}
	return s.Join()
}

type message struct {
	name    string
	state   State
	outcome *Outcome
}

func (s *Scheduler) loop(ctx context.Context, coord *Coordinator) {
	defer close(s.done)

	events := make(chan message)
	inflight := 0

	launch := func() {
		if ctx.Err() != nil {
			return
		}
		for {
			pkg, ok := coord.Next()
			if !ok {
				break
			}
			inflight++
			s.emit(Event{Package: pkg.Name, State: StateBuilding})
			s.logger.Info(logging.WithPackage(ctx, pkg.Name), "package build started",
				zap.Int("layer", coordLayer(coord, pkg.Name)),
				zap.Int("active", coord.Active()),
			)
			go s.work(ctx, pkg, events)
		}
		recordQueue(coord)
	}

	launch()
	for inflight > 0 {
		msg := <-events
		if msg.outcome == nil {
			coord.SetState(msg.name, msg.state)
			s.emit(Event{Package: msg.name, State: msg.state})
			continue
		}

		inflight--
		skipped := coord.Complete(msg.name, *msg.outcome)
		task, _ := coord.Task(msg.name)
		recordFinished(task)
		s.emit(Event{Package: msg.name, State: task.State, Cause: task.Cause})
		s.logFinished(ctx, task)

		for i, name := range skipped {
			t, _ := coord.Task(name)
			recordFinished(t)
			s.emit(Event{Package: name, State: StateSkipped, Cause: t.Cause})
			if i == 0 {
				s.logger.Warn(logging.WithPackage(ctx, name), "dependents skipped",
					zap.String("failed_dependency", msg.name),
					zap.Int("skipped", len(skipped)),
					zap.String("cause", t.Cause),
				)
			}
		}
		launch()
	}

	if err := ctx.Err(); err != nil {
		cause := fmt.Sprintf("schedule cancelled: %v", err)
		for _, name := range coord.Cancel(cause) {
			t, _ := coord.Task(name)
			recordFinished(t)
			s.emit(Event{Package: name, State: StateSkipped, Cause: cause})
		}
		s.err = err
	}
	recordQueue(coord)
	s.tasks = coord.Tasks()
}

func (s *Scheduler) work(ctx context.Context, pkg graph.Package, events chan<- message) {
	pctx := logging.WithPackage(ctx, pkg.Name)
	out := Outcome{State: StateFailed}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{State: StateFailed, Cause: fmt.Sprintf("build panicked: %v", r)}
			s.logger.Error(pctx, "package build panicked", zap.Any("panic", r))
		}
		events <- message{name: pkg.Name, outcome: &out}
	}()

	progress := func(st State) {
		events <- message{name: pkg.Name, state: st}
	}
	out = s.runner.Run(pctx, pkg, progress)
}

func (s *Scheduler) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

func (s *Scheduler) logFinished(ctx context.Context, t Task) {
	ctx = logging.WithPackage(ctx, t.Name())
	fields := []zap.Field{
		zap.String("state", string(t.State)),
		zap.Int("attempts", t.Attempts),
		zap.Duration("duration", t.Duration()),
	}
	if t.Score != nil {
		fields = append(fields, zap.Int("score", t.Score.Value), zap.String("level", string(t.Score.Level)))
	}
	if t.Cause != "" {
		fields = append(fields, zap.String("cause", t.Cause))
	}
	switch t.State {
	case StatePublished:
		s.logger.Info(ctx, "package build finished", fields...)
	case StateAwaitingHuman:
		s.logger.Warn(ctx, "package build awaiting human", fields...)
	default:
		s.logger.Error(ctx, "package build failed", fields...)
	}
}

func coordLayer(c *Coordinator, name string) int {
	return c.graph.Layer(name)
}
