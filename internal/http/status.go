package http

import (
	"sync"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// Tracker keeps the live status of one run. Wire OnPhase as the orchestrator
// progress callback and OnEvent as the scheduler event sink.
type Tracker struct {
	mu       sync.RWMutex
	now      func() time.Time
	phase    orchestrator.PhaseProgress
	updated  time.Time
	packages map[string]PackageStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now, packages: make(map[string]PackageStatus)}
}

// OnPhase records a phase transition. A new run ID clears package state.
func (t *Tracker) OnPhase(p orchestrator.PhaseProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.RunID != t.phase.RunID {
		t.packages = make(map[string]PackageStatus)
	}
	t.phase = p
	t.updated = t.now()
}

// OnEvent records a package state change.
func (t *Tracker) OnEvent(e scheduler.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.packages[e.Package] = PackageStatus{State: string(e.State), Cause: e.Cause, UpdatedAt: now}
	t.updated = now
}

// Package returns the status of one package.
func (t *Tracker) Package(name string) (PackageStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.packages[name]
	return p, ok
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() StatusResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()
	resp := StatusResponse{
		RunID:      t.phase.RunID,
		Phase:      string(t.phase.Phase),
		Status:     string(t.phase.Status),
		Message:    t.phase.Message,
		Percentage: t.phase.Percentage,
		Packages:   make(map[string]PackageStatus, len(t.packages)),
		Totals:     make(map[string]int),
		UpdatedAt:  t.updated,
	}
	for name, p := range t.packages {
		resp.Packages[name] = p
		resp.Totals[p.State]++
	}
	return resp
}
