package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug. pkgforge logs agent prompts and
// replies and per-probe quality results at this level.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. Matching is case-insensitive and
// accepts "trace" and "warning" in addition to zap's own names.
func LevelFromString(level string) (zapcore.Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(name)); err != nil {
			return zapcore.InfoLevel, err
		}
		return l, nil
	}
}
