package generation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// expectedFormat describes the content a file of this type must contain.
func expectedFormat(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case base == "package.json":
		return "a single valid JSON object (the npm package manifest) with at least \"name\" and \"version\"; no markdown fences, comments or prose"
	case strings.HasSuffix(base, ".json"):
		return "a single valid JSON document; no markdown fences, comments or trailing commas"
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return "valid YAML; no markdown fences and consistent space indentation"
	case strings.HasSuffix(base, ".toml"):
		return "valid TOML; no markdown fences"
	case strings.HasSuffix(base, ".ts"), strings.HasSuffix(base, ".tsx"):
		return "TypeScript source that type-checks under strict mode; raw code only, no markdown fences"
	case strings.HasSuffix(base, ".js"), strings.HasSuffix(base, ".mjs"), strings.HasSuffix(base, ".cjs"):
		return "JavaScript source; raw code only, no markdown fences"
	case strings.HasSuffix(base, ".md"):
		return "Markdown documentation"
	default:
		return "the raw file content only, with no surrounding fences or commentary"
	}
}

// MetaCorrectionDirective builds the escalated instruction sent in place of
// the codebase summary after repeated identical failures on one file.
func MetaCorrectionDirective(e FileFailureEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STOP. Your changes to %s have failed %d times with the same error.\n\n", e.Path, e.Count)
	fmt.Fprintf(&b, "Expected content for %s: %s.\n\n", e.Path, expectedFormat(e.Path))
	fmt.Fprintf(&b, "The exact error was:\n%s\n\n", e.LastError())
	b.WriteString("Do not repeat the previous approach. Re-read the error, then send one ")
	fmt.Fprintf(&b, "%s command that rewrites %s completely and correctly. ", KindApplyFileChanges, e.Path)
	fmt.Fprintf(&b, "If the same error occurs %d more times this package build will be terminated.\n", MaxPostMetaAttempts+1)
	return b.String()
}
