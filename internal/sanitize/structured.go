package sanitize

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a structured-data file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor returns the structured format for path, by extension.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// Validate parses content as format f and returns the parse error, if any.
func Validate(f Format, content string) error {
	switch f {
	case FormatJSON:
		var v any
		return json.Unmarshal([]byte(content), &v)
	case FormatYAML:
		var v any
		return yaml.Unmarshal([]byte(content), &v)
	case FormatTOML:
		var v map[string]any
		_, err := toml.Decode(content, &v)
		return err
	}
	return fmt.Errorf("unknown format %q", f)
}

// Parses reports whether content is a valid document in format f.
func Parses(f Format, content string) bool {
	return Validate(f, content) == nil
}

// Unwrap strips an enclosing markdown fence: a first line of ``` with an
// optional language tag and a last non-blank line of ```.
func Unwrap(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content, false
	}
	first, rest, ok := strings.Cut(trimmed, "\n")
	if !ok || strings.Contains(strings.TrimPrefix(first, "```"), "`") {
		return content, false
	}
	body := strings.TrimRight(rest, " \t\r\n")
	if !strings.HasSuffix(body, "```") {
		return content, false
	}
	body = strings.TrimSuffix(body, "```")
	return strings.TrimRight(body, " \t\r"), true
}

// Structured prepares content for writing to path. For structured-data files
// wrapped in a fence, the unwrapped body is returned when it parses. In every
// other case content comes back unchanged, so a malformed payload fails
// downstream validation instead of being masked here.
func Structured(path, content string) (string, bool) {
	f, ok := FormatFor(path)
	if !ok {
		return content, false
	}
	body, wrapped := Unwrap(content)
	if !wrapped || !Parses(f, body) {
		return content, false
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, true
}
