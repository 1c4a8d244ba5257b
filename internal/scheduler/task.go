// Package scheduler runs package build tasks in dependency order with a
// bounded number of concurrent builds.
//
// A Coordinator owns the in-degree counters, the ready queue and the active
// set. It is not safe for concurrent use: the Scheduler drives it from a single
// goroutine, and workers only report events back to that goroutine.
package scheduler

import (
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
)

// State is a PackageBuildTask lifecycle state.
type State string

const (
	StatePending       State = "PENDING"
	StateReady         State = "READY"
	StateBuilding      State = "BUILDING"
	StateQualityCheck  State = "QUALITY_CHECK"
	StateRemediating   State = "REMEDIATING"
	StatePublished     State = "PUBLISHED"
	StateFailed        State = "FAILED"
	StateSkipped       State = "SKIPPED"
	StateAwaitingHuman State = "AWAITING_HUMAN"
)

// States lists every state in lifecycle order.
var States = []State{
	StatePending, StateReady, StateBuilding, StateQualityCheck, StateRemediating,
	StatePublished, StateFailed, StateSkipped, StateAwaitingHuman,
}

// Terminal reports whether s ends a task. AWAITING_HUMAN is terminal-pending:
// the scheduler treats it as finished, but it is not a failure.
func (s State) Terminal() bool {
	switch s {
	case StatePublished, StateFailed, StateSkipped, StateAwaitingHuman:
		return true
	}
	return false
}

// Succeeded reports whether dependents may build on top of s.
func (s State) Succeeded() bool { return s == StatePublished }

// Task is one PackageBuildTask.
type Task struct {
	Package    graph.Package            `json:"package"`
	State      State                    `json:"state"`
	Attempts   int                      `json:"attempts"`
	Score      *quality.ComplianceScore `json:"score,omitempty"`
	Version    string                   `json:"version,omitempty"`
	Cause      string                   `json:"cause,omitempty"`
	StartedAt  time.Time                `json:"started_at,omitempty"`
	FinishedAt time.Time                `json:"finished_at,omitempty"`
}

// Name returns the package name.
func (t Task) Name() string { return t.Package.Name }

// Duration returns how long the task ran. Tasks that never started report 0.
func (t Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Outcome is what a Runner reports when a package build ends.
type Outcome struct {
	State    State
	Attempts int
	Score    *quality.ComplianceScore
	Version  string
	Cause    string
}

// Totals counts tasks by state.
func Totals(tasks []Task) map[State]int {
	out := make(map[State]int, len(States))
	for _, t := range tasks {
		out[t.State]++
	}
	return out
}
