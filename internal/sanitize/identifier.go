// Package sanitize normalizes untrusted names and content produced while
// building packages: scoped package names used as workflow and object keys,
// file paths proposed by the agent, and structured-data files the agent wraps
// in markdown fences.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength bounds identifiers used in workflow IDs and object keys.
	MaxIdentifierLength = 64

	// hashSuffixLength is "_" plus eight hex characters.
	hashSuffixLength = 9

	// DefaultIdentifier is used when nothing survives sanitization.
	DefaultIdentifier = "package"
)

// Identifier maps a package name onto [a-z0-9_-]:
//
//	"@acme/http-client" -> "acme_http-client"
//	"My Package!"       -> "my_package"
//
// Names longer than MaxIdentifierLength are truncated with a hash suffix so
// distinct long names stay distinct.
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_-")
	if out == "" {
		return DefaultIdentifier
	}
	if len(out) > MaxIdentifierLength {
		out = truncateWithHash(out)
	}
	return out
}

func truncateWithHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]
	return strings.TrimRight(s[:MaxIdentifierLength-hashSuffixLength], "_-") + suffix
}
