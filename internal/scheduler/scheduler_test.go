package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// syncClock is a strictly increasing clock safe for concurrent use.
type syncClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *syncClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func publishAll(context.Context, graph.Package, func(State)) Outcome {
	return Outcome{State: StatePublished, Attempts: 1}
}

func wide(n int) graph.MapLookup {
	pkgs := graph.MapLookup{}
	var deps []string
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("leaf-%02d", i)
		pkgs[name] = graph.Package{}
		deps = append(deps, name)
	}
	pkgs["root"] = graph.Package{Dependencies: deps}
	return pkgs
}

func TestScheduler_NeverExceedsCeiling(t *testing.T) {
	var active, peak int32
	runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Outcome{State: StatePublished}
	})

	s := New(runner, WithMaxConcurrent(3))
	tasks, err := s.Run(context.Background(), resolve(t, wide(12), "root"))
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 13, Totals(tasks)[StatePublished])
}

func TestScheduler_StartsAfterDependenciesFinish(t *testing.T) {
	clock := &syncClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(RunnerFunc(publishAll), WithMaxConcurrent(4), WithClock(clock.Now))
	g := resolve(t, diamond(), "app")

	tasks, err := s.Run(context.Background(), g)
	require.NoError(t, err)

	byName := map[string]Task{}
	for _, task := range tasks {
		byName[task.Name()] = task
	}
	for _, task := range tasks {
		for _, dep := range g.Dependencies(task.Name()) {
			assert.False(t, task.StartedAt.Before(byName[dep].FinishedAt),
				"%s started before %s finished", task.Name(), dep)
		}
	}
}

func TestScheduler_LinearChain(t *testing.T) {
	chain := graph.MapLookup{
		"A": {},
		"B": {Dependencies: []string{"A"}},
		"C": {Dependencies: []string{"B"}},
	}

	t.Run("all publish in order", func(t *testing.T) {
		var mu sync.Mutex
		var order []string
		runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
			mu.Lock()
			order = append(order, pkg.Name)
			mu.Unlock()
			return Outcome{State: StatePublished}
		})
		_, err := New(runner, WithMaxConcurrent(1)).Run(context.Background(), resolve(t, chain, "C"))
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, order)
	})

	t.Run("B fails after remediation", func(t *testing.T) {
		var ran []string
		runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
			ran = append(ran, pkg.Name)
			if pkg.Name == "B" {
				progress(StateQualityCheck)
				progress(StateRemediating)
				return Outcome{State: StateFailed, Attempts: 3, Cause: "remediation exhausted after 3 attempts"}
			}
			return Outcome{State: StatePublished}
		})
		tasks, err := New(runner, WithMaxConcurrent(1)).Run(context.Background(), resolve(t, chain, "C"))
		require.NoError(t, err)

		states := map[string]State{}
		for _, task := range tasks {
			states[task.Name()] = task.State
		}
		assert.Equal(t, StatePublished, states["A"])
		assert.Equal(t, StateFailed, states["B"])
		assert.Equal(t, StateSkipped, states["C"])
		assert.Equal(t, []string{"A", "B"}, ran)
	})
}

func TestScheduler_FailureNeverBuildsDependents(t *testing.T) {
	var built sync.Map
	runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
		built.Store(pkg.Name, true)
		if pkg.Name == "core" {
			return Outcome{State: StateFailed, Cause: "typecheck"}
		}
		return Outcome{State: StatePublished}
	})
	tasks, err := New(runner, WithMaxConcurrent(4)).Run(context.Background(), resolve(t, diamond(), "app"))
	require.NoError(t, err)

	for _, task := range tasks {
		if task.Name() == "core" {
			continue
		}
		assert.Equal(t, StateSkipped, task.State, task.Name())
		_, ok := built.Load(task.Name())
		assert.False(t, ok, "%s must not be built", task.Name())
	}
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	logger := logging.NewTestLogger()
	runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
		panic("agent exploded")
	})
	tasks, err := New(runner, WithLogger(logger.Logger)).Run(context.Background(), resolve(t, graph.MapLookup{"a": {}}, "a"))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, StateFailed, tasks[0].State)
	assert.Contains(t, tasks[0].Cause, "agent exploded")
	logger.AssertLogged(t, zapcore.ErrorLevel, "package build panicked")
}

func TestScheduler_Events(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
		progress(StateQualityCheck)
		return Outcome{State: StatePublished}
	})
	s := New(runner, WithEvents(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))
	_, err := s.Run(context.Background(), resolve(t, graph.MapLookup{"a": {}}, "a"))
	require.NoError(t, err)

	var states []State
	for _, e := range events {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StateBuilding, StateQualityCheck, StatePublished}, states)
}

func TestScheduler_CancelSkipsUnstarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := RunnerFunc(func(ctx context.Context, pkg graph.Package, progress func(State)) Outcome {
		cancel()
		return Outcome{State: StatePublished}
	})
	chain := graph.MapLookup{"A": {}, "B": {Dependencies: []string{"A"}}}
	tasks, err := New(runner, WithMaxConcurrent(1)).Run(ctx, resolve(t, chain, "B"))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, tasks, 2)

	states := map[string]State{}
	for _, task := range tasks {
		states[task.Name()] = task.State
	}
	assert.Equal(t, StatePublished, states["A"])
	assert.Equal(t, StateSkipped, states["B"])
}

func TestScheduler_SubmitTwice(t *testing.T) {
	s := New(RunnerFunc(publishAll))
	g := resolve(t, graph.MapLookup{"a": {}}, "a")
	require.NoError(t, s.Submit(context.Background(), g))
	assert.ErrorIs(t, s.Submit(context.Background(), g), ErrAlreadySubmitted)
	_, err := s.Join()
	assert.NoError(t, err)
}

func TestScheduler_JoinBeforeSubmit(t *testing.T) {
	_, err := New(RunnerFunc(publishAll)).Join()
	assert.ErrorIs(t, err, ErrNotSubmitted)
}
