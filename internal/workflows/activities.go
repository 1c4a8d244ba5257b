package workflows

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

const defaultHeartbeatInterval = 30 * time.Second

// Activities holds the worker-side dependencies of the build activities.
// Register a *Activities with the worker.
type Activities struct {
	// NewRunner returns the package runner for one run; build.NewRunner
	// wrapped with the run's report sink is the usual implementation.
	NewRunner func(runID string, plans manifest.Plans) scheduler.Runner

	// HeartbeatInterval defaults to 30s.
	HeartbeatInterval time.Duration
}

// BuildPackage runs the package state machine and reports its outcome. Build
// failures are outcomes, not activity errors.
func (a *Activities) BuildPackage(ctx context.Context, in BuildPackageInput) (scheduler.Outcome, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	if a.NewRunner == nil {
		activityErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("activity", "build_package")))
		return scheduler.Outcome{}, temporal.NewNonRetryableApplicationError(
			"build activities have no runner", "misconfigured", errors.New("Activities.NewRunner is nil"))
	}

	var (
		mu    sync.Mutex
		state = scheduler.StateBuilding
	)
	current := func() scheduler.State {
		mu.Lock()
		defer mu.Unlock()
		return state
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		interval := a.HeartbeatInterval
		if interval <= 0 {
			interval = defaultHeartbeatInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, current())
			}
		}
	}()

	runner := a.NewRunner(in.RunID, manifest.Plans{in.Package.Name: in.Plan})
	out := runner.Run(ctx, in.Package, func(s scheduler.State) {
		mu.Lock()
		state = s
		mu.Unlock()
		activity.RecordHeartbeat(ctx, s)
	})

	attrs := metric.WithAttributes(attribute.String("state", string(out.State)))
	activityDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("activity", "build_package")))
	packageOutcomeCounter.Add(ctx, 1, attrs)

	logger.Info("Package build activity finished",
		"package", in.Package.Name,
		"state", string(out.State),
		"attempts", out.Attempts)
	return out, nil
}
