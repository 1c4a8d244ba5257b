package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/generation"
)

// ErrNoCommand is returned when a reply holds no JSON object.
var ErrNoCommand = errors.New("agent reply contains no command object")

// ParseReply extracts the first JSON object from a model reply and decodes it
// as a command. Prose and markdown fences around the object are ignored.
func ParseReply(reply string) (generation.Command, error) {
	obj, ok := firstObject(reply)
	if !ok {
		return nil, ErrNoCommand
	}
	cmd, err := generation.ParseCommand([]byte(obj))
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}

// firstObject returns the first balanced {...} span, honoring JSON string
// escapes so braces inside file contents do not end the object early.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
