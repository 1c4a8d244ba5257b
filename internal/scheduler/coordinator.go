package scheduler

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

// Coordinator is the single serialization point for scheduling state.
type Coordinator struct {
	graph    *graph.Graph
	max      int
	now      func() time.Time
	indegree map[string]int
	ready    []string
	active   map[string]bool
	tasks    map[string]*Task
}

// NewCoordinator seeds the ready queue with every package that has no
// dependencies, in discovery order. max below 1 is treated as 1.
func NewCoordinator(g *graph.Graph, max int, now func() time.Time) *Coordinator {
	if max < 1 {
		max = 1
	}
	if now == nil {
		now = time.Now
	}
	c := &Coordinator{
		graph:    g,
		max:      max,
		now:      now,
		indegree: make(map[string]int, g.Len()),
		active:   make(map[string]bool, max),
		tasks:    make(map[string]*Task, g.Len()),
	}
	for _, pkg := range g.Packages() {
		c.tasks[pkg.Name] = &Task{Package: pkg, State: StatePending}
		c.indegree[pkg.Name] = len(pkg.Dependencies)
		if len(pkg.Dependencies) == 0 {
			c.enqueue(pkg.Name)
		}
	}
	return c
}

func (c *Coordinator) enqueue(name string) {
	c.tasks[name].State = StateReady
	c.ready = append(c.ready, name)
}

// Next starts the next ready task if the active set has room.
func (c *Coordinator) Next() (graph.Package, bool) {
	if len(c.active) >= c.max || len(c.ready) == 0 {
		return graph.Package{}, false
	}
	name := c.ready[0]
	c.ready = c.ready[1:]
	c.active[name] = true
	t := c.tasks[name]
	t.State = StateBuilding
	t.StartedAt = c.now()
	return t.Package, true
}

// SetState records an intermediate state reported by an active task.
func (c *Coordinator) SetState(name string, s State) {
	if !c.active[name] || s.Terminal() {
		return
	}
	c.tasks[name].State = s
}

// Complete records the outcome of an active task. On success it releases
// dependents whose dependencies have all published; otherwise every transitive
// dependent is marked SKIPPED and returned.
func (c *Coordinator) Complete(name string, out Outcome) []string {
	if !c.active[name] {
		return nil
	}
	delete(c.active, name)

	if !out.State.Terminal() {
		out.Cause = fmt.Sprintf("build ended in non-terminal state %s", out.State)
		out.State = StateFailed
	}
	t := c.tasks[name]
	t.State = out.State
	t.Attempts = out.Attempts
	t.Score = out.Score
	t.Version = out.Version
	t.Cause = out.Cause
	t.FinishedAt = c.now()

	if out.State.Succeeded() {
		for _, dep := range c.graph.Dependents(name) {
			c.indegree[dep]--
			if c.indegree[dep] == 0 && c.tasks[dep].State == StatePending {
				c.enqueue(dep)
			}
		}
		return nil
	}
	return c.skipDependents(name, out)
}

func (c *Coordinator) skipDependents(name string, out Outcome) []string {
	var skipped []string
	for _, dep := range c.graph.TransitiveDependents(name) {
		t := c.tasks[dep]
		if t.State.Terminal() {
			continue
		}
		t.State = StateSkipped
		t.FinishedAt = c.now()
		if len(skipped) == 0 {
			t.Cause = fmt.Sprintf("dependency %s ended %s: %s", name, out.State, out.Cause)
		} else {
			t.Cause = fmt.Sprintf("upstream %s did not publish", name)
		}
		skipped = append(skipped, dep)
	}
	return skipped
}

// Cancel skips every task that has not started. Active tasks are left to
// report their own outcome.
func (c *Coordinator) Cancel(cause string) []string {
	c.ready = nil
	var skipped []string
	for _, name := range c.graph.Order() {
		t := c.tasks[name]
		if t.State == StatePending || t.State == StateReady {
			t.State = StateSkipped
			t.Cause = cause
			t.FinishedAt = c.now()
			skipped = append(skipped, name)
		}
	}
	return skipped
}

// Active returns the number of running tasks.
func (c *Coordinator) Active() int { return len(c.active) }

// Queued returns the number of ready tasks waiting for capacity.
func (c *Coordinator) Queued() int { return len(c.ready) }

// Done reports schedule completion: nothing active and nothing ready.
func (c *Coordinator) Done() bool {
	return len(c.active) == 0 && len(c.ready) == 0
}

// Task returns a copy of the task for name.
func (c *Coordinator) Task(name string) (Task, bool) {
	t, ok := c.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of every task in discovery order.
func (c *Coordinator) Tasks() []Task {
	out := make([]Task, 0, len(c.tasks))
	for _, name := range c.graph.Order() {
		out = append(out, *c.tasks[name])
	}
	return out
}
