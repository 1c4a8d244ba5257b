package main

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	statusapi "github.com/fyrsmithlabs/pkgforge/internal/http"
)

var (
	serveOpts  runOptions
	serveWatch bool
)

func init() {
	addRunFlags(serveCmd, &serveOpts)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild when a package manifest, the plan file or the checked out branch changes")
}

// serveCmd builds a suite behind the status API and keeps serving afterwards.
var serveCmd = &cobra.Command{
	Use:   "serve [package...]",
	Short: "Build a suite and keep serving its status",
	Long: `Like run, but the status API (/health, /metrics, /api/v1/status) stays
up after the run finishes until the process is interrupted. Point
"pkgforge watch" at it to follow the run live.

With --watch the workspace is rediscovered and rebuilt whenever a package
manifest or the plan file changes, or another branch is checked out.

Examples:
  pkgforge serve --plan suite.yaml
  pkgforge serve --watch
  PKGFORGE_SERVER_HTTP_PORT=8080 pkgforge serve @acme/app`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serveSuite(ctx, cmd.OutOrStdout(), args, serveOpts, serveWatch)
	},
}

func serveSuite(ctx context.Context, out io.Writer, args []string, opts runOptions, watch bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tracker := statusapi.NewTracker()
	stop, err := a.startStatusServer(ctx, tracker)
	if err != nil {
		return err
	}
	defer stop()

	for {
		s, err := a.loadSuite(opts.planFile)
		if err != nil {
			return err
		}
		if !watch {
			runErr := a.runSuite(ctx, out, s, args, opts, tracker)
			a.logger.Info(ctx, "run finished, status server still up; interrupt to exit")
			<-ctx.Done()
			return runErr
		}

		// Watch before building so edits made during the run trigger the next one.
		w, err := a.watchSuite(s)
		if err != nil {
			return err
		}
		if runErr := a.runSuite(ctx, out, s, args, opts, tracker); runErr != nil {
			a.logger.Warn(ctx, "suite run failed", zap.Error(runErr))
		}
		changed, err := w.Wait(ctx)
		_ = w.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		a.logger.Info(ctx, "workspace changed, rebuilding", zap.String("path", changed))
		// Each rebuild is a new run.
		opts.runID = ""
	}
}
