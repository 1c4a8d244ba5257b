package secrets

import (
	"fmt"
	"sort"
	"strings"
)

// Redact replaces detected secrets in content with [REDACTED:rule-id]
// markers. Tool output passes through here before it is shown to the code
// generation agent or written to reports.
func (s *Scanner) Redact(content string, allowlist *Allowlist) (string, []Finding, error) {
	findings, err := s.ScanString(content, allowlist)
	if err != nil {
		return "", nil, err
	}
	if len(findings) == 0 {
		return content, nil, nil
	}
	return replaceFindings(content, findings), findings, nil
}

// replaceFindings replaces longer matches first so a secret that contains
// another is not split.
func replaceFindings(content string, findings []Finding) string {
	sorted := append([]Finding(nil), findings...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Match) > len(sorted[j].Match) })
	for _, f := range sorted {
		if f.Match == "" {
			continue
		}
		content = strings.ReplaceAll(content, f.Match, fmt.Sprintf("[REDACTED:%s]", f.RuleID))
	}
	return content
}
