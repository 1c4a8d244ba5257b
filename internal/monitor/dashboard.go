// Package monitor renders pkgforge runs in the terminal: a live dashboard that
// polls the status server and the summary table printed after a run.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	statusapi "github.com/fyrsmithlabs/pkgforge/internal/http"
	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	causeWidth      = 50
)

// Model is the BubbleTea dashboard model.
type Model struct {
	client     *StatusClient
	interval   time.Duration
	lastUpdate time.Time
	status     statusapi.StatusResponse
	err        error
	quitting   bool

	// published and active hold the last historySize samples.
	published []float64
	active    []float64

	phaseProgress progress.Model
}

// k9s-inspired color scheme
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling client every interval.
func NewModel(client *StatusClient, interval time.Duration) Model {
	return Model{
		client:    client,
		interval:  interval,
		published: make([]float64, 0, historySize),
		active:    make([]float64, 0, historySize),
		phaseProgress: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(40),
		),
	}
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type statusMsg statusapi.StatusResponse
type errMsg error

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStatus(m.client),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStatus(client *StatusClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status, err := client.Status(ctx)
		if err != nil {
			return errMsg(err)
		}
		return statusMsg(status)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStatus(m.client)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStatus(m.client),
		)

	case statusMsg:
		m.status = statusapi.StatusResponse(msg)
		m.published = appendToHistory(m.published, float64(m.status.Totals[string(scheduler.StatePublished)]))
		running := 0
		for _, s := range []scheduler.State{scheduler.StateBuilding, scheduler.StateQualityCheck, scheduler.StateRemediating} {
			running += m.status.Totals[string(s)]
		}
		m.active = appendToHistory(m.active, float64(running))
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" pkgforge Monitor ") + "\n\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach the pkgforge status server") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.client.BaseURL()) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start a run with `pkgforge run --serve` or `pkgforge serve`.") + "\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry") + "\n")
	return containerStyle.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	s := m.status

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	runID := s.RunID
	if runID == "" {
		runID = "idle"
	}
	b.WriteString(headerStyle.Render(" pkgforge Monitor ") + "\n")
	fmt.Fprintf(&b, "%s %s   %s %s   %s\n",
		dimStyle.Render("Run:"), valueStyle.Render(runID),
		dimStyle.Render("Phase:"), phaseBadge(s),
		dimStyle.Render(lastUpdate))

	pct := float64(s.Percentage) / 100
	if pct > 1 {
		pct = 1
	}
	b.WriteString(labelStyle.Render("  Progress: ") + m.phaseProgress.ViewAs(pct) +
		" " + dimStyle.Render(fmt.Sprintf("%d%%", s.Percentage)) + "\n")
	if s.Message != "" {
		b.WriteString(labelStyle.Render("  ") + dimStyle.Render(truncate(s.Message, 70)) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Throughput") + "\n")
	b.WriteString(labelStyle.Render("  Published: ") +
		valueStyle.Render(fmt.Sprintf("%-4d", s.Totals[string(scheduler.StatePublished)])) +
		"  " + createSparkline(m.published) + "\n")
	b.WriteString(labelStyle.Render("  Active:    ") +
		valueStyle.Render(fmt.Sprintf("%-4d", int(last(m.active)))) +
		"  " + createSparkline(m.active) + "\n")

	b.WriteString("\n" + sectionStyle.Render(fmt.Sprintf("┃ Packages (%d)", len(s.Packages))) + "\n")
	if len(s.Packages) == 0 {
		b.WriteString(dimStyle.Render("  no packages reported yet") + "\n")
	}
	for _, name := range sortedNames(s.Packages) {
		p := s.Packages[name]
		line := fmt.Sprintf("  %s %-32s %s", stateBadge(p.State), truncate(name, 32), stateStyle(p.State).Render(p.State))
		if p.Cause != "" {
			line += "  " + dimStyle.Render(truncate(p.Cause, causeWidth))
		}
		b.WriteString(line + "\n")
	}

	totals := make(map[scheduler.State]int, len(s.Totals))
	for state, n := range s.Totals {
		totals[scheduler.State(state)] = n
	}
	b.WriteString("\n" + RenderTotals(totals) + "\n")

	b.WriteString(footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval)))

	return containerStyle.Render(b.String())
}

func phaseBadge(s statusapi.StatusResponse) string {
	if s.Phase == "" {
		return dimStyle.Render("waiting")
	}
	switch orchestrator.Phase(s.Phase) {
	case orchestrator.PhaseComplete:
		return healthyStyle.Render("✓ " + s.Phase)
	case orchestrator.PhaseFailed:
		return errorStyle.Render("✗ " + s.Phase)
	default:
		return warningStyle.Render("▶ " + s.Phase)
	}
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}
