package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/workflows"
)

// workerCmd runs a Temporal worker for suite and package workflows.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker for durable builds",
	Long: `Start a Temporal worker on temporal.task_queue that executes
SuiteBuildWorkflow, PackageBuildWorkflow and the package build activity.
Runs started with "pkgforge start" or "pkgforge run --durable" are picked up
by any worker on the queue.

Examples:
  pkgforge worker
  PKGFORGE_TEMPORAL_HOST_PORT=temporal:7233 pkgforge worker`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runWorker(ctx)
	},
}

func runWorker(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	deps, err := a.newBuildDeps(ctx)
	if err != nil {
		return err
	}
	c, err := a.dialTemporal(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	w := workflows.NewWorker(c, a.cfg.Temporal.TaskQueue, &workflows.Activities{
		NewRunner: a.runnerFactory(deps),
	})
	a.logger.Info(ctx, "worker configured",
		zap.String("task_queue", a.cfg.Temporal.TaskQueue),
		zap.String("workspace", a.cfg.Workspace.Root))

	workerErrors := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "worker starting")
		workerErrors <- w.Run(worker.InterruptCh())
	}()

	select {
	case err := <-workerErrors:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
	case <-ctx.Done():
		// The worker stops on the same interrupt.
		a.logger.Info(ctx, "shutdown signal received")
	}

	a.logger.Info(ctx, "worker stopped gracefully")
	return nil
}
