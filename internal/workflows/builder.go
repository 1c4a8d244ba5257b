package workflows

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// Builder runs the BUILD phase as a SuiteBuildWorkflow and waits for it.
type Builder struct {
	Client        client.Client
	TaskQueue     string
	MaxConcurrent int
	WaitForHuman  bool
	HumanTimeout  time.Duration
	Logger        *logging.Logger
}

var _ orchestrator.Builder = (*Builder)(nil)

// Start launches the SuiteBuildWorkflow for g without waiting for it.
func (b *Builder) Start(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) (client.WorkflowRun, error) {
	in := SuiteBuildInput{
		RunID:         runID,
		Roots:         g.Roots(),
		Packages:      g.Packages(),
		Plans:         make(manifest.Plans, g.Len()),
		MaxConcurrent: b.MaxConcurrent,
		WaitForHuman:  b.WaitForHuman,
		HumanTimeout:  b.HumanTimeout,
	}
	for _, name := range g.Order() {
		if p, ok := plans[name]; ok {
			in.Plans[name] = p
		}
	}

	opts := client.StartWorkflowOptions{
		ID:        SuiteWorkflowID(runID),
		TaskQueue: b.TaskQueue,
	}
	run, err := b.Client.ExecuteWorkflow(ctx, opts, SuiteBuildWorkflow, in)
	if err != nil {
		return nil, fmt.Errorf("failed to start suite workflow: %w", err)
	}
	b.logger().Info(ctx, "suite workflow started",
		zap.String("workflow_id", opts.ID),
		zap.String("run_id", run.GetRunID()),
		zap.String("task_queue", b.TaskQueue))
	return run, nil
}

// Build implements orchestrator.Builder.
func (b *Builder) Build(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) ([]scheduler.Task, error) {
	start := time.Now()
	run, err := b.Start(ctx, runID, g, plans)
	if err != nil {
		b.record(ctx, "start_failed", start)
		return nil, err
	}

	var res SuiteBuildResult
	if err := run.Get(ctx, &res); err != nil {
		b.record(ctx, "failed", start)
		return res.Tasks, fmt.Errorf("suite workflow %s: %w", run.GetID(), err)
	}
	for _, e := range res.Errors {
		b.logger().Warn(ctx, "suite workflow reported an error", zap.String("error", e))
	}
	b.record(ctx, "completed", start)
	return res.Tasks, nil
}

func (b *Builder) logger() *logging.Logger {
	if b.Logger == nil {
		return logging.Nop()
	}
	return b.Logger
}

func (b *Builder) record(ctx context.Context, result string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	suiteRunCounter.Add(ctx, 1, attrs)
	suiteRunDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// NewWorker creates a worker on taskQueue with both workflows and acts
// registered.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(SuiteBuildWorkflow)
	w.RegisterWorkflow(PackageBuildWorkflow)
	w.RegisterActivity(acts)
	return w
}
