// Package workflows runs suite builds durably on Temporal.
//
// SuiteBuildWorkflow drives the same scheduling Coordinator the in-process
// scheduler uses, starting one PackageBuildWorkflow child per package. Each
// child runs the package state machine in the BuildPackage activity and, when
// configured, stays open for a human decision after the generation loop asks
// for intervention.
package workflows

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/sanitize"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

const (
	// HumanDecisionSignal carries a HumanDecision to a package workflow.
	HumanDecisionSignal = "human-decision"
	// PackageStateQuery returns the current scheduler.State of a package workflow.
	PackageStateQuery = "package-state"
	// SuiteTasksQuery returns the current []scheduler.Task of a suite workflow.
	SuiteTasksQuery = "suite-tasks"

	// DefaultHumanTimeout bounds the wait for a human decision.
	DefaultHumanTimeout = 72 * time.Hour
)

// SuiteBuildInput configures SuiteBuildWorkflow. The graph travels as its
// package list and is rebuilt inside the workflow.
type SuiteBuildInput struct {
	RunID         string
	Roots         []string
	Packages      []graph.Package
	Plans         manifest.Plans
	MaxConcurrent int
	WaitForHuman  bool
	HumanTimeout  time.Duration
}

// SuiteBuildResult is the final task table of a suite build.
type SuiteBuildResult struct {
	Tasks  []scheduler.Task
	Errors []string
}

// PackageBuildInput configures PackageBuildWorkflow.
type PackageBuildInput struct {
	RunID        string
	Package      graph.Package
	Plan         manifest.PackagePlan
	WaitForHuman bool
	HumanTimeout time.Duration
}

// BuildPackageInput is the BuildPackage activity argument.
type BuildPackageInput struct {
	RunID   string
	Package graph.Package
	Plan    manifest.PackagePlan
}

// HumanAction is what an operator decided for a package awaiting a human.
type HumanAction string

const (
	// HumanRetry rebuilds the package with the decision's guidance appended to
	// the plan instructions.
	HumanRetry HumanAction = "retry"
	// HumanAbandon fails the package.
	HumanAbandon HumanAction = "abandon"
)

// HumanDecision is the HumanDecisionSignal payload.
type HumanDecision struct {
	Action   HumanAction
	Guidance string
}

// Valid reports whether d names a known action.
func (d HumanDecision) Valid() bool {
	return d.Action == HumanRetry || d.Action == HumanAbandon
}

// SuiteWorkflowID is the workflow ID of a suite build run.
func SuiteWorkflowID(runID string) string {
	return "pkgforge-suite-" + runID
}

// PackageWorkflowID is the workflow ID of one package build within a run.
// Scoped names are sanitized so the ID is stable and readable.
func PackageWorkflowID(runID, pkg string) string {
	return fmt.Sprintf("pkgforge-%s-%s", runID, sanitize.Identifier(pkg))
}

func withGuidance(instructions, guidance string) string {
	if guidance == "" {
		return instructions
	}
	if instructions == "" {
		return "Operator guidance:\n" + guidance
	}
	return instructions + "\n\nOperator guidance:\n" + guidance
}
