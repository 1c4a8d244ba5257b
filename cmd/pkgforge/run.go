package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	statusapi "github.com/fyrsmithlabs/pkgforge/internal/http"
	"github.com/fyrsmithlabs/pkgforge/internal/monitor"
	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
	"github.com/fyrsmithlabs/pkgforge/internal/workflows"
)

// runOptions are the flags shared by run and serve.
type runOptions struct {
	planFile     string
	runID        string
	durable      bool
	serve        bool
	waitForHuman bool
	humanTimeout time.Duration
}

var runOpts runOptions

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVarP(&opts.planFile, "plan", "p", "", "YAML plan file (overrides workspace.plan_file)")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "run identifier (random when empty)")
	cmd.Flags().BoolVar(&opts.durable, "durable", false, "run BUILD as Temporal workflows (requires a running worker)")
	cmd.Flags().BoolVar(&opts.waitForHuman, "wait-for-human", false, "with --durable, wait for a human decision when a package needs intervention")
	cmd.Flags().DurationVar(&opts.humanTimeout, "human-timeout", workflows.DefaultHumanTimeout, "with --wait-for-human, how long to wait for a decision")
}

func init() {
	addRunFlags(runCmd, &runOpts)
	runCmd.Flags().BoolVar(&runOpts.serve, "serve", false, "serve the status API while the run is in progress")
}

// runCmd builds a suite and exits.
var runCmd = &cobra.Command{
	Use:   "run [package...]",
	Short: "Build a package suite",
	Long: `Build the named packages and everything they depend on. With no
arguments every buildable workspace package is a root.

The run goes through DISCOVERY, PLANNING, MECE_VALIDATION, BUILD, QUALITY
and PUBLISH. The exit status is non-zero unless every package published.

Examples:
  # Build the whole workspace
  pkgforge run

  # Build one package with plans from a file, serving status on :9090
  pkgforge run --plan suite.yaml --serve @acme/app

  # Run BUILD on Temporal workers
  pkgforge run --durable --wait-for-human`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return executeSuite(ctx, cmd.OutOrStdout(), args, runOpts)
	},
}

// executeSuite runs one suite end to end and prints its summary.
func executeSuite(ctx context.Context, out io.Writer, args []string, opts runOptions) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.loadSuite(opts.planFile)
	if err != nil {
		return err
	}
	tracker := statusapi.NewTracker()

	if opts.serve {
		stop, err := a.startStatusServer(ctx, tracker)
		if err != nil {
			return err
		}
		defer stop()
	}
	return a.runSuite(ctx, out, s, args, opts, tracker)
}

// runSuite builds s, feeding tracker, and prints the summary.
func (a *app) runSuite(ctx context.Context, out io.Writer, s *suite, args []string, opts runOptions, tracker *statusapi.Tracker) error {
	builder, closeBuilder, err := a.newBuilder(ctx, opts, tracker.OnEvent)
	if err != nil {
		return err
	}
	defer closeBuilder()

	sink, err := a.newReportSink()
	if err != nil {
		return err
	}

	orch := orchestrator.New(s.lookup, s.plans, builder,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithReports(sink),
		orchestrator.WithProgress(func(p orchestrator.PhaseProgress) {
			tracker.OnPhase(p)
			a.logger.Info(ctx, "suite phase",
				zap.String("phase", string(p.Phase)),
				zap.String("status", string(p.Status)),
				zap.Int("percentage", p.Percentage),
				zap.String("message", p.Message))
		}),
	)

	state, runErr := orch.Execute(ctx, orchestrator.Request{
		RunID: opts.runID,
		Roots: s.roots(args),
		Plans: s.filePlans,
	})
	printSummary(out, state)
	return runErr
}

// newBuilder returns the BUILD phase implementation: Temporal workflows when
// durable, otherwise the in-process scheduler.
func (a *app) newBuilder(ctx context.Context, opts runOptions, events func(scheduler.Event)) (orchestrator.Builder, func(), error) {
	if opts.durable {
		c, err := a.dialTemporal(ctx)
		if err != nil {
			return nil, nil, err
		}
		return a.durableBuilder(c, opts), c.Close, nil
	}

	deps, err := a.newBuildDeps(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &orchestrator.LocalBuilder{
		NewRunner:     a.runnerFactory(deps),
		MaxConcurrent: a.cfg.Build.MaxConcurrentBuilds,
		Logger:        a.logger,
		Events:        events,
	}, func() {}, nil
}

func (a *app) durableBuilder(c client.Client, opts runOptions) *workflows.Builder {
	return &workflows.Builder{
		Client:        c,
		TaskQueue:     a.cfg.Temporal.TaskQueue,
		MaxConcurrent: a.cfg.Build.MaxConcurrentBuilds,
		WaitForHuman:  opts.waitForHuman || a.cfg.Build.WaitForHuman,
		HumanTimeout:  opts.humanTimeout,
		Logger:        a.logger,
	}
}

// startStatusServer serves the status API in the background. The returned
// function shuts it down.
func (a *app) startStatusServer(ctx context.Context, tracker *statusapi.Tracker) (func(), error) {
	srv, err := statusapi.NewServer(tracker, a.logger.Underlying(), &statusapi.Config{
		Host: "0.0.0.0",
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create status server: %w", err)
	}
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(ctx, "status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "status server shutdown failed", zap.Error(err))
		}
	}, nil
}

func printSummary(out io.Writer, state *orchestrator.SuiteState) {
	if len(state.Tasks) > 0 {
		fmt.Fprintln(out, monitor.RenderSummary(state.Tasks))
	}
	fmt.Fprintf(out, "Run %s finished in phase %s", state.RunID, state.Phase)
	if state.Cause != "" {
		fmt.Fprintf(out, ": %s", state.Cause)
	}
	fmt.Fprintln(out)
}
