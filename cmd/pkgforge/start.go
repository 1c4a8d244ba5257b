package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
)

var startOpts runOptions

func init() {
	addRunFlags(startCmd, &startOpts)
}

// startCmd resolves and plans a suite locally, then hands BUILD to Temporal
// without waiting.
var startCmd = &cobra.Command{
	Use:   "start [package...]",
	Short: "Start a durable suite build and return",
	Long: `Resolve the graph and plans, then start a SuiteBuildWorkflow on
temporal.task_queue and print its workflow ID. A "pkgforge worker" executes
the build. Use "pkgforge decide" to answer packages waiting for a human.

Examples:
  pkgforge start --plan suite.yaml --wait-for-human @acme/app`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.loadSuite(startOpts.planFile)
		if err != nil {
			return err
		}
		plans := s.plans.Merge(s.filePlans)
		g, err := graph.Resolve(plans.Augment(s.lookup), s.roots(args)...)
		if err != nil {
			return err
		}
		if missing := plans.Missing(g.Order()); len(missing) > 0 {
			return fmt.Errorf("%w for %s", manifest.ErrNoPlan, strings.Join(missing, ", "))
		}

		c, err := a.dialTemporal(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		runID := startOpts.runID
		if runID == "" {
			runID = orchestrator.NewRunID()
		}
		run, err := a.durableBuilder(c, startOpts).Start(ctx, runID, g, plans)
		if err != nil {
			return err
		}
		if run == nil {
			return errors.New("temporal returned no workflow run")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run ID:      %s\n", runID)
		fmt.Fprintf(out, "Workflow ID: %s\n", run.GetID())
		fmt.Fprintf(out, "Packages:    %d in %d layer(s)\n", g.Len(), len(g.Layers()))
		return nil
	},
}
