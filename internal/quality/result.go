package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
)

// Result is the outcome of one check. A fresh Result is produced every pass.
type Result struct {
	Check     Check                `json:"check"`
	Passed    bool                 `json:"passed"`
	Details   []string             `json:"details,omitempty"`
	Missing   []string             `json:"missing,omitempty"`
	Locations []toolchain.Location `json:"locations,omitempty"`
	// Fault is set when the probe itself failed to run.
	Fault    string        `json:"fault,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Pass builds a passing result.
func Pass(c Check, details ...string) Result {
	return Result{Check: c, Passed: true, Details: details}
}

// Fail builds a failing result.
func Fail(c Check, details ...string) Result {
	return Result{Check: c, Passed: false, Details: details}
}

// Report is one complete quality pass.
type Report struct {
	Package string          `json:"package"`
	Results []Result        `json:"results"`
	Score   ComplianceScore `json:"score"`
}

// Result returns the result for c.
func (r Report) Result(c Check) (Result, bool) {
	for _, res := range r.Results {
		if res.Check == c {
			return res, true
		}
	}
	return Result{}, false
}

// Faults returns the checks whose probes failed to run.
func (r Report) Faults() []Check {
	var out []Check
	for _, res := range r.Results {
		if res.Fault != "" {
			out = append(out, res.Check)
		}
	}
	return out
}

// maxFindingLines bounds per-check detail in Findings.
const maxFindingLines = 20

// Findings renders the failing checks as instructions for the code
// generation agent: which checks failed, what is missing and where errors
// were reported.
func (r Report) Findings() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quality score %s; failing checks:\n", r.Score)
	for _, res := range r.Results {
		if res.Passed {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (weight %d)\n", res.Check, Weight(res.Check))
		if res.Fault != "" {
			fmt.Fprintf(&b, "- check could not run: %s\n", res.Fault)
		}
		for _, m := range res.Missing {
			fmt.Fprintf(&b, "- missing: %s\n", m)
		}
		n := 0
		for _, loc := range res.Locations {
			if n == maxFindingLines {
				fmt.Fprintf(&b, "- ... %d more\n", len(res.Locations)-n)
				break
			}
			if loc.Line > 0 {
				fmt.Fprintf(&b, "- %s:%d: %s\n", loc.File, loc.Line, loc.Message)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", loc.File, loc.Message)
			}
			n++
		}
		if len(res.Locations) == 0 {
			for i, d := range res.Details {
				if i == maxFindingLines {
					break
				}
				fmt.Fprintf(&b, "- %s\n", d)
			}
		}
	}
	return b.String()
}
