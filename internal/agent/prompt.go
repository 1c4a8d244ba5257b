package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/generation"
)

// MaxHistoryEntries bounds how many recent turns the prompt replays.
const MaxHistoryEntries = 20

const preamble = `You are building one npm package, one command per turn.

Reply with exactly one JSON object and nothing else:

  {"command": "<name>", "payload": {...}}

Commands:
  apply-file-changes     payload {"files": [{"path": "src/index.ts", "content": "..."}]}
                         Each file is replaced completely. Paths are relative to the package root.
  validate-manifest      no payload. Checks package.json.
  check-license-headers  no payload.
  run-lint               no payload.
  run-tests              no payload.
  publish                no payload. Runs the publish readiness check; send it when the package is done.

Fix failures reported in the history before moving on.`

// BuildPrompt renders everything the agent needs for one turn.
func BuildPrompt(req generation.Request) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Package\n%s (turn %d)\n\n", req.Package, req.Turn)
	fmt.Fprintf(&b, "## Plan\n%s\n\n", strings.TrimSpace(req.Plan))
	if s := strings.TrimSpace(req.Instructions); s != "" {
		fmt.Fprintf(&b, "## Instructions\n%s\n\n", s)
	}

	if req.MetaCorrection {
		fmt.Fprintf(&b, "## Correction\n%s\n\n", strings.TrimSpace(req.Context))
	} else if s := strings.TrimSpace(req.Context); s != "" {
		fmt.Fprintf(&b, "## Codebase\n%s\n\n", s)
	}

	b.WriteString("## History\n")
	writeHistory(&b, req.History)
	return b.String()
}

func writeHistory(b *strings.Builder, history []generation.ActionHistoryEntry) {
	if len(history) == 0 {
		b.WriteString("(no turns yet)\n")
		return
	}
	if skipped := len(history) - MaxHistoryEntries; skipped > 0 {
		fmt.Fprintf(b, "(%d earlier turns omitted)\n", skipped)
		history = history[skipped:]
	}
	for _, h := range history {
		status := "ok"
		if !h.Outcome.Success {
			status = "FAILED"
		}
		fmt.Fprintf(b, "- turn %d: %s -> %s", h.Turn, h.Summary, status)
		if h.Outcome.Detail != "" {
			fmt.Fprintf(b, ": %s", oneLine(h.Outcome.Detail))
		}
		b.WriteString("\n")
		if h.Outcome.Error != "" {
			fmt.Fprintf(b, "    error: %s\n", oneLine(h.Outcome.Error))
		}
		paths := make([]string, 0, len(h.Outcome.FileErrors))
		for p := range h.Outcome.FileErrors {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(b, "    %s: %s\n", p, oneLine(h.Outcome.FileErrors[p]))
		}
	}
}

const maxLineLength = 400

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLineLength {
		s = s[:maxLineLength] + "..."
	}
	return s
}
