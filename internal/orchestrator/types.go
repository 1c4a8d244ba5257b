package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// Phase is a suite-level phase.
type Phase string

const (
	PhaseDiscovery      Phase = "DISCOVERY"
	PhasePlanning       Phase = "PLANNING"
	PhaseMECEValidation Phase = "MECE_VALIDATION"
	PhaseBuild          Phase = "BUILD"
	PhaseQuality        Phase = "QUALITY"
	PhasePublish        Phase = "PUBLISH"
	PhaseComplete       Phase = "COMPLETE"
	PhaseFailed         Phase = "FAILED"
)

// AllPhases returns the working phases in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseDiscovery, PhasePlanning, PhaseMECEValidation, PhaseBuild, PhaseQuality, PhasePublish}
}

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// PhaseStatus is the completion status of one phase.
type PhaseStatus string

const (
	StatusPending    PhaseStatus = "pending"
	StatusInProgress PhaseStatus = "in_progress"
	StatusCompleted  PhaseStatus = "completed"
	StatusFailed     PhaseStatus = "failed"
)

// PhaseResult captures the outcome of one phase.
type PhaseResult struct {
	Phase       Phase       `json:"phase"`
	Status      PhaseStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	Output      string      `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Request starts a suite run.
type Request struct {
	// RunID identifies the run. A random ID is generated when empty.
	RunID string
	Roots []string
	// Plans supplied with the request override plans found in the workspace.
	Plans manifest.Plans
}

var (
	// ErrNoPlan fails PLANNING when a package has no plan text.
	ErrNoPlan = manifest.ErrNoPlan

	// ErrMECEViolation fails MECE_VALIDATION.
	ErrMECEViolation = errors.New("suite validation failed")

	// ErrSuiteIncomplete fails QUALITY or PUBLISH when some package did not
	// get through.
	ErrSuiteIncomplete = errors.New("suite incomplete")
)

// PhaseError records which phase ended the run.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// SuiteState is the complete state of one suite run.
type SuiteState struct {
	RunID      string                 `json:"run_id"`
	Roots      []string               `json:"roots"`
	Phase      Phase                  `json:"phase"`
	Results    map[Phase]*PhaseResult `json:"results"`
	Violations []Violation            `json:"violations,omitempty"`
	Graph      *graph.Graph           `json:"-"`
	Plans      manifest.Plans         `json:"-"`
	Tasks      []scheduler.Task       `json:"tasks,omitempty"`
	Cause      string                 `json:"cause,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
}

func newSuiteState(req Request, now time.Time) *SuiteState {
	return &SuiteState{
		RunID:     req.RunID,
		Roots:     append([]string(nil), req.Roots...),
		Results:   make(map[Phase]*PhaseResult),
		StartedAt: now,
	}
}

// CanTransition checks that next directly follows the current phase and that
// the current phase completed.
func (s *SuiteState) CanTransition(next Phase) error {
	phases := AllPhases()
	if s.Phase == "" {
		if next != phases[0] {
			return fmt.Errorf("cannot start at %s", next)
		}
		return nil
	}
	currentIdx, nextIdx := -1, -1
	for i, p := range phases {
		if p == s.Phase {
			currentIdx = i
		}
		if p == next {
			nextIdx = i
		}
	}
	if currentIdx == -1 {
		return fmt.Errorf("invalid current phase: %s", s.Phase)
	}
	if nextIdx == -1 {
		return fmt.Errorf("invalid target phase: %s", next)
	}
	if nextIdx != currentIdx+1 {
		return fmt.Errorf("cannot transition from %s to %s: must follow sequential order", s.Phase, next)
	}
	if r, ok := s.Results[s.Phase]; !ok || r.Status != StatusCompleted {
		return fmt.Errorf("cannot transition: phase %s not completed", s.Phase)
	}
	return nil
}

// Succeeded reports whether the run reached COMPLETE.
func (s *SuiteState) Succeeded() bool { return s.Phase == PhaseComplete }

// Totals counts the build tasks by state.
func (s *SuiteState) Totals() map[scheduler.State]int {
	return scheduler.Totals(s.Tasks)
}

// Violation is a problem found by a PhaseGate.
type Violation struct {
	Type        ViolationType `json:"type"`
	Package     string        `json:"package,omitempty"`
	Description string        `json:"description"`
	Severity    Severity      `json:"severity"`
}

// ViolationType categorizes gate violations.
type ViolationType string

const (
	ViolationDuplicateName   ViolationType = "duplicate_name"
	ViolationMissingCategory ViolationType = "missing_category"
	ViolationUncategorized   ViolationType = "uncategorized"
)

// Severity indicates whether a violation blocks the run.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// PhaseGate validates the suite before a phase runs.
type PhaseGate interface {
	Name() string
	Check(ctx context.Context, state *SuiteState) ([]Violation, error)
}

// Builder runs the BUILD phase for a resolved graph.
type Builder interface {
	Build(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) ([]scheduler.Task, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) ([]scheduler.Task, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) ([]scheduler.Task, error) {
	return f(ctx, runID, g, plans)
}
