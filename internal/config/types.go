package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads from YAML and PKGFORGE_* variables.
// Values use time.ParseDuration syntax ("90s", "2m"); a bare integer is a
// number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if secs, err := strconv.Atoi(s); err == nil {
		s = strconv.Itoa(secs) + "s"
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return d.Duration().String() }

const redacted = "[REDACTED]"

// Secret holds a credential (registry token, agent API key, S3 secret). Every
// printing and encoding path yields redacted; only Value returns the
// credential itself.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string                { return s.mask() }
func (s Secret) GoString() string              { return "Secret(" + redacted + ")" }
func (s Secret) MarshalText() ([]byte, error)  { return []byte(s.mask()), nil }
func (s Secret) MarshalJSON() ([]byte, error)  { return json.Marshal(s.mask()) }
func (s *Secret) UnmarshalText(b []byte) error { *s = Secret(b); return nil }

func (s *Secret) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// Value returns the credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }
