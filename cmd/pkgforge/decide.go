package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pkgforge/internal/workflows"
)

var decideGuidance string

func init() {
	decideCmd.Flags().StringVarP(&decideGuidance, "guidance", "g", "", "guidance appended to the package instructions on retry")
}

// decideCmd answers a package workflow waiting for a human decision.
var decideCmd = &cobra.Command{
	Use:   "decide <run-id> <package> retry|abandon",
	Short: "Answer a package waiting for human intervention",
	Long: `Send a human decision to a durable package build that stopped in
AWAITING_HUMAN. "retry" runs the build again with the guidance added to the
package instructions; "abandon" fails the package and skips its dependents.

Examples:
  pkgforge decide 6f1c... @acme/core retry -g "use the fetch API, not axios"
  pkgforge decide 6f1c... @acme/core abandon`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		decision := workflows.HumanDecision{
			Action:   workflows.HumanAction(args[2]),
			Guidance: decideGuidance,
		}
		if !decision.Valid() {
			return fmt.Errorf("unknown decision %q (want %s or %s)", args[2], workflows.HumanRetry, workflows.HumanAbandon)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.dialTemporal(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		id := workflows.PackageWorkflowID(args[0], args[1])
		if err := c.SignalWorkflow(ctx, id, "", workflows.HumanDecisionSignal, decision); err != nil {
			return fmt.Errorf("failed to signal %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", decision.Action, id)
		return nil
	},
}
