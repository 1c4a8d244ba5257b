package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// PackageBuildWorkflow runs one package through the build state machine.
//
// When the build ends AWAITING_HUMAN and WaitForHuman is set, the workflow
// waits up to HumanTimeout for a HumanDecisionSignal. Retry rebuilds with the
// operator's guidance; abandon fails the package. With no decision the
// package stays AWAITING_HUMAN.
func PackageBuildWorkflow(ctx workflow.Context, in PackageBuildInput) (scheduler.Outcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting package build", "run_id", in.RunID, "package", in.Package.Name)

	state := scheduler.StateBuilding
	if err := workflow.SetQueryHandler(ctx, PackageStateQuery, func() (scheduler.State, error) {
		return state, nil
	}); err != nil {
		return scheduler.Outcome{}, NewWorkflowError("register_query", ErrorSeverityCritical, err, PackageStateQuery).Application()
	}

	// The activity owns its retries: generation, remediation and publish each
	// have their own bounded attempts, so Temporal must not re-run it.
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 6 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var acts *Activities
	decisions := workflow.GetSignalChannel(ctx, HumanDecisionSignal)
	plan := in.Plan

	for {
		var out scheduler.Outcome
		err := workflow.ExecuteActivity(ctx, acts.BuildPackage, BuildPackageInput{
			RunID:   in.RunID,
			Package: in.Package,
			Plan:    plan,
		}).Get(ctx, &out)
		if err != nil {
			state = scheduler.StateFailed
			return scheduler.Outcome{State: scheduler.StateFailed, Cause: err.Error()},
				NewWorkflowError("build_package", ErrorSeverityCritical, WrapActivityError("failed to build package", err), in.Package.Name).Application()
		}
		state = out.State

		if out.State != scheduler.StateAwaitingHuman || !in.WaitForHuman {
			logger.Info("Package build finished", "package", in.Package.Name, "state", string(out.State))
			return out, nil
		}

		logger.Info("Waiting for human decision", "package", in.Package.Name, "cause", out.Cause)
		decision, ok := awaitDecision(ctx, decisions, in.HumanTimeout)
		if !ok {
			logger.Warn("No human decision before timeout", "package", in.Package.Name)
			return out, nil
		}

		switch decision.Action {
		case HumanAbandon:
			logger.Info("Package abandoned by operator", "package", in.Package.Name)
			state = scheduler.StateFailed
			out.State = scheduler.StateFailed
			out.Cause = "abandoned by operator"
			if decision.Guidance != "" {
				out.Cause += ": " + decision.Guidance
			}
			return out, nil
		case HumanRetry:
			logger.Info("Retrying package with operator guidance", "package", in.Package.Name)
			plan.Instructions = withGuidance(plan.Instructions, decision.Guidance)
			state = scheduler.StateBuilding
		}
	}
}

// awaitDecision blocks until a valid decision arrives or timeout elapses.
// Invalid decisions are logged and ignored.
func awaitDecision(ctx workflow.Context, ch workflow.ReceiveChannel, timeout time.Duration) (HumanDecision, bool) {
	if timeout <= 0 {
		timeout = DefaultHumanTimeout
	}
	timerCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()
	timedOut := false
	timer := workflow.NewTimer(timerCtx, timeout)

	for {
		var d HumanDecision
		received := false
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(ch, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &d)
			received = true
		})
		sel.AddFuture(timer, func(workflow.Future) { timedOut = true })
		sel.Select(ctx)

		if timedOut || ctx.Err() != nil {
			return HumanDecision{}, false
		}
		if received && d.Valid() {
			return d, true
		}
		workflow.GetLogger(ctx).Warn("Ignoring invalid human decision", "action", string(d.Action))
	}
}
