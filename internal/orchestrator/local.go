package orchestrator

import (
	"context"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// LocalBuilder runs BUILD in process on the build scheduler.
type LocalBuilder struct {
	// NewRunner returns the per-package runner for one run.
	NewRunner     func(runID string, plans manifest.Plans) scheduler.Runner
	MaxConcurrent int
	Logger        *logging.Logger
	Events        func(scheduler.Event)
}

var _ Builder = (*LocalBuilder)(nil)

// Build implements Builder.
func (b *LocalBuilder) Build(ctx context.Context, runID string, g *graph.Graph, plans manifest.Plans) ([]scheduler.Task, error) {
	opts := []scheduler.Option{scheduler.WithMaxConcurrent(b.MaxConcurrent), scheduler.WithEvents(b.Events)}
	if b.Logger != nil {
		opts = append(opts, scheduler.WithLogger(b.Logger))
	}
	return scheduler.New(b.NewRunner(runID, plans), opts...).Run(ctx, g)
}
