package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// FormatDuration formats d as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Round(time.Second) / time.Second)
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatScore renders a compliance score, or "-" when there is none.
func FormatScore(t scheduler.Task) string {
	if t.Score == nil {
		return "-"
	}
	return fmt.Sprintf("%d (%s)", t.Score.Value, t.Score.Level)
}

// stateStyle colors a task state.
func stateStyle(state string) lipgloss.Style {
	switch scheduler.State(state) {
	case scheduler.StatePublished:
		return healthyStyle
	case scheduler.StateFailed:
		return errorStyle
	case scheduler.StateAwaitingHuman, scheduler.StateRemediating:
		return warningStyle
	case scheduler.StateSkipped, scheduler.StatePending:
		return dimStyle
	default:
		return valueStyle
	}
}

// stateBadge returns a one-character symbol for a state.
func stateBadge(state string) string {
	switch scheduler.State(state) {
	case scheduler.StatePublished:
		return stateStyle(state).Render("✓")
	case scheduler.StateFailed:
		return stateStyle(state).Render("✗")
	case scheduler.StateAwaitingHuman:
		return stateStyle(state).Render("?")
	case scheduler.StateSkipped:
		return stateStyle(state).Render("-")
	default:
		return stateStyle(state).Render("•")
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// RenderSummary renders the end-of-run table: one row per task in the order
// given, then the per-state totals.
func RenderSummary(tasks []scheduler.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		dur := "-"
		if d := t.Duration(); d > 0 {
			dur = FormatDuration(d)
		}
		version := t.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			t.Name(),
			string(t.State),
			fmt.Sprintf("%d", t.Attempts),
			FormatScore(t),
			version,
			dur,
			truncate(t.Cause, 60),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("PACKAGE", "STATE", "ATTEMPTS", "SCORE", "VERSION", "DURATION", "CAUSE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return sectionStyle.MarginTop(0).Padding(0, 1)
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return stateStyle(rows[row][1]).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	return tbl.Render() + "\n" + RenderTotals(scheduler.Totals(tasks))
}

// RenderTotals renders non-zero state counts in lifecycle order.
func RenderTotals(totals map[scheduler.State]int) string {
	parts := make([]string, 0, len(totals))
	for _, s := range scheduler.States {
		if n := totals[s]; n > 0 {
			parts = append(parts, stateStyle(string(s)).Render(fmt.Sprintf("%s %d", s, n)))
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("no packages")
	}
	return strings.Join(parts, dimStyle.Render("  ·  "))
}

// sortedNames returns map keys in order.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
