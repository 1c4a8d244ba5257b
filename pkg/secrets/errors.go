// Package secrets detects and redacts secrets with the Gitleaks rule set.
package secrets

import "errors"

// Allowlist loading errors. Both are wrapped with the offending file or
// pattern.
var (
	ErrInvalidRegex = errors.New("allowlist pattern does not compile")
	ErrInvalidTOML  = errors.New("allowlist file is not valid TOML")
)
