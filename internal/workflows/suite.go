package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// SuiteBuildWorkflow builds every package of a suite in dependency order with
// at most MaxConcurrent package workflows running at once. A package that does
// not publish marks its transitive dependents SKIPPED.
func SuiteBuildWorkflow(ctx workflow.Context, in SuiteBuildInput) (*SuiteBuildResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting suite build",
		"run_id", in.RunID,
		"roots", in.Roots,
		"packages", len(in.Packages))

	lookup := make(graph.MapLookup, len(in.Packages))
	for _, pkg := range in.Packages {
		lookup[pkg.Name] = pkg
	}
	g, err := graph.Resolve(lookup, in.Roots...)
	if err != nil {
		werr := NewWorkflowError("resolve_graph", ErrorSeverityCritical, err, in.RunID)
		return &SuiteBuildResult{Errors: []string{werr.Error()}}, werr.Application()
	}

	result := &SuiteBuildResult{}
	coord := scheduler.NewCoordinator(g, in.MaxConcurrent, func() time.Time { return workflow.Now(ctx) })
	if err := workflow.SetQueryHandler(ctx, SuiteTasksQuery, func() ([]scheduler.Task, error) {
		return coord.Tasks(), nil
	}); err != nil {
		return result, NewWorkflowError("register_query", ErrorSeverityCritical, err, SuiteTasksQuery).Application()
	}

	humanTimeout := in.HumanTimeout
	if humanTimeout <= 0 {
		humanTimeout = DefaultHumanTimeout
	}

	sel := workflow.NewSelector(ctx)
	complete := func(name string, out scheduler.Outcome) {
		for _, skipped := range coord.Complete(name, out) {
			logger.Info("Package skipped", "package", skipped, "upstream", name)
		}
	}

	launch := func() {
		if ctx.Err() != nil {
			coord.Cancel("suite build cancelled")
			return
		}
		for {
			pkg, ok := coord.Next()
			if !ok {
				return
			}
			plan, err := in.Plans.Resolve(pkg.Name)
			if err != nil {
				result.Errors = append(result.Errors, FormatErrorForResult("failed to resolve plan", err))
				complete(pkg.Name, scheduler.Outcome{State: scheduler.StateFailed, Cause: err.Error()})
				continue
			}

			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
				WorkflowID: PackageWorkflowID(in.RunID, pkg.Name),
			})
			name := pkg.Name
			future := workflow.ExecuteChildWorkflow(childCtx, PackageBuildWorkflow, PackageBuildInput{
				RunID:        in.RunID,
				Package:      pkg,
				Plan:         plan,
				WaitForHuman: in.WaitForHuman,
				HumanTimeout: humanTimeout,
			})
			logger.Info("Package build started", "package", name, "layer", g.Layer(name))

			sel.AddFuture(future, func(f workflow.Future) {
				var out scheduler.Outcome
				if err := f.Get(ctx, &out); err != nil {
					logger.Error("Package workflow failed", "package", name, "error", err)
					result.Errors = append(result.Errors, FormatErrorForResult(fmt.Sprintf("package %s", name), err))
					out = scheduler.Outcome{State: scheduler.StateFailed, Cause: err.Error()}
				}
				complete(name, out)
			})
		}
	}

	launch()
	for coord.Active() > 0 {
		sel.Select(ctx)
		launch()
	}

	result.Tasks = coord.Tasks()
	totals := scheduler.Totals(result.Tasks)
	logger.Info("Suite build finished",
		"run_id", in.RunID,
		"published", totals[scheduler.StatePublished],
		"failed", totals[scheduler.StateFailed],
		"skipped", totals[scheduler.StateSkipped],
		"awaiting_human", totals[scheduler.StateAwaitingHuman])
	return result, nil
}
