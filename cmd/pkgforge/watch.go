package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pkgforge/internal/monitor"
)

var (
	watchURL      string
	watchInterval time.Duration
)

func init() {
	watchCmd.Flags().StringVar(&watchURL, "server", "http://localhost:9090", "pkgforge status server URL")
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 2*time.Second, "refresh interval")
}

// watchCmd follows a run in a terminal dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a run in a live terminal dashboard",
	Long: `Poll the status API of a "pkgforge serve" or "pkgforge run --serve"
process and show the current phase, per-package states and totals.

Keys: q quit, r refresh.

Examples:
  pkgforge watch
  pkgforge watch --server http://build-host:9090 -i 5s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchInterval <= 0 {
			return fmt.Errorf("interval must be positive, got %v", watchInterval)
		}
		model := monitor.NewModel(monitor.NewStatusClient(watchURL), watchInterval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard error: %w", err)
		}
		return nil
	},
}
