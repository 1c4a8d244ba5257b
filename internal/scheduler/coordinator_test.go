package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

func resolve(t *testing.T, pkgs graph.MapLookup, roots ...string) *graph.Graph {
	t.Helper()
	g, err := graph.Resolve(pkgs, roots...)
	require.NoError(t, err)
	return g
}

// tick returns a clock that advances one second per call.
func tick() func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

// diamond: app -> (http, log) -> core
func diamond() graph.MapLookup {
	return graph.MapLookup{
		"app":  {Dependencies: []string{"http", "log"}},
		"http": {Dependencies: []string{"core"}},
		"log":  {Dependencies: []string{"core"}},
		"core": {},
	}
}

func TestCoordinator_SeedsLeaves(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 2, tick())

	task, _ := c.Task("core")
	assert.Equal(t, StateReady, task.State)
	task, _ = c.Task("app")
	assert.Equal(t, StatePending, task.State)
	assert.Equal(t, 1, c.Queued())
}

func TestCoordinator_ReleasesDependentsOnPublish(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 4, tick())

	pkg, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, "core", pkg.Name)
	_, ok = c.Next()
	assert.False(t, ok, "nothing else is ready")

	assert.Empty(t, c.Complete("core", Outcome{State: StatePublished}))

	var started []string
	for {
		p, ok := c.Next()
		if !ok {
			break
		}
		started = append(started, p.Name)
	}
	assert.Equal(t, []string{"http", "log"}, started)

	c.Complete("http", Outcome{State: StatePublished})
	_, ok = c.Next()
	assert.False(t, ok, "app still waits for log")

	c.Complete("log", Outcome{State: StatePublished})
	p, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, "app", p.Name)
	c.Complete("app", Outcome{State: StatePublished, Version: "1.0.0"})
	assert.True(t, c.Done())
}

func TestCoordinator_RespectsCeiling(t *testing.T) {
	pkgs := graph.MapLookup{
		"root": {Dependencies: []string{"a", "b", "c"}},
		"a":    {},
		"b":    {},
		"c":    {},
	}
	c := NewCoordinator(resolve(t, pkgs, "root"), 2, tick())

	_, ok1 := c.Next()
	_, ok2 := c.Next()
	_, ok3 := c.Next()
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
	assert.Equal(t, 2, c.Active())
	assert.Equal(t, 1, c.Queued())
	assert.False(t, c.Done())
}

func TestCoordinator_FailureSkipsTransitiveDependents(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 4, tick())

	c.Next()
	skipped := c.Complete("core", Outcome{State: StateFailed, Cause: "remediation exhausted"})
	assert.Equal(t, []string{"app", "http", "log"}, skipped)

	first, _ := c.Task("app")
	assert.Equal(t, StateSkipped, first.State)
	assert.Contains(t, first.Cause, "remediation exhausted")
	for _, name := range []string{"http", "log"} {
		task, _ := c.Task(name)
		assert.Equal(t, StateSkipped, task.State)
		assert.NotContains(t, task.Cause, "remediation exhausted")
	}
	assert.True(t, c.Done())
}

func TestCoordinator_AwaitingHumanSkipsDependents(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 4, tick())
	c.Next()
	c.Complete("core", Outcome{State: StatePublished})
	c.Next()
	c.Next()

	skipped := c.Complete("http", Outcome{State: StateAwaitingHuman, Cause: "lint keeps failing"})
	assert.Equal(t, []string{"app"}, skipped)

	c.Complete("log", Outcome{State: StatePublished})
	_, ok := c.Next()
	assert.False(t, ok, "skipped package must never start")
	assert.True(t, c.Done())

	totals := Totals(c.Tasks())
	assert.Equal(t, 2, totals[StatePublished])
	assert.Equal(t, 1, totals[StateAwaitingHuman])
	assert.Equal(t, 1, totals[StateSkipped])
}

func TestCoordinator_NonTerminalOutcomeFails(t *testing.T) {
	c := NewCoordinator(resolve(t, graph.MapLookup{"a": {}}, "a"), 1, tick())
	c.Next()
	c.Complete("a", Outcome{State: StateQualityCheck})

	task, _ := c.Task("a")
	assert.Equal(t, StateFailed, task.State)
	assert.Contains(t, task.Cause, "non-terminal")
}

func TestCoordinator_SetStateOnlyForActive(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 4, tick())
	c.SetState("app", StateRemediating)
	task, _ := c.Task("app")
	assert.Equal(t, StatePending, task.State)

	c.Next()
	c.SetState("core", StateQualityCheck)
	task, _ = c.Task("core")
	assert.Equal(t, StateQualityCheck, task.State)
}

func TestCoordinator_Cancel(t *testing.T) {
	c := NewCoordinator(resolve(t, diamond(), "app"), 4, tick())
	c.Next()
	skipped := c.Cancel("shutdown")
	assert.Equal(t, []string{"app", "http", "log"}, skipped)

	task, _ := c.Task("core")
	assert.Equal(t, StateBuilding, task.State)
	c.Complete("core", Outcome{State: StatePublished})
	assert.True(t, c.Done())
}
