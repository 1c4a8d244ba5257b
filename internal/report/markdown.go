package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// Markdown renders a suite record as a summary document.
func Markdown(rec SuiteRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Suite run %s\n\n", rec.RunID)
	fmt.Fprintf(&b, "- Roots: %s\n", strings.Join(rec.Roots, ", "))
	fmt.Fprintf(&b, "- Phase: %s\n", rec.Phase)
	if rec.Cause != "" {
		fmt.Fprintf(&b, "- Cause: %s\n", rec.Cause)
	}
	if d := rec.Duration(); d > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", d.Round(time.Millisecond))
	}

	if len(rec.Totals) > 0 {
		b.WriteString("\n## Totals\n\n| State | Packages |\n|---|---|\n")
		for _, s := range scheduler.States {
			if n := rec.Totals[s]; n > 0 {
				fmt.Fprintf(&b, "| %s | %d |\n", s, n)
			}
		}
	}

	if len(rec.Tasks) > 0 {
		b.WriteString("\n## Packages\n\n| Package | State | Score | Attempts | Version | Cause |\n|---|---|---|---|---|---|\n")
		for _, t := range rec.Tasks {
			score := "-"
			if t.Score != nil {
				score = t.Score.String()
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s | %s |\n",
				t.Name(), t.State, score, t.Attempts, dash(t.Version), dash(escapeCell(t.Cause)))
		}
	}
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
