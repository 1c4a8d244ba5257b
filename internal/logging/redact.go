package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
)

// Secret logs a config.Secret as a redaction marker carrying only its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as a redaction marker carrying only its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder redacts string fields by key name or value pattern. Agent
// output and probe logs end up in fields, so values are checked as well as
// keys.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]bool
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base with the redaction rules in cfg.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	enc := &RedactingEncoder{Encoder: base, keys: map[string]bool{}}
	if !cfg.Enabled {
		return enc, nil
	}
	for _, f := range cfg.Fields {
		enc.keys[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		enc.patterns = append(enc.patterns, re)
	}
	return enc, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	return e.keys[strings.ToLower(key)]
}

func (e *RedactingEncoder) redactValue(val string) string {
	for _, re := range e.patterns {
		val = re.ReplaceAllString(val, "[REDACTED]")
	}
	return val
}

// EncodeEntry redacts per-entry fields before delegating. The wrapped
// encoder encodes these fields on its own clone, bypassing the Add methods.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case e.sensitive(f.Key):
			out[i] = zap.String(f.Key, "[REDACTED]")
		case f.Type == zapcore.StringType:
			f.String = e.redactValue(f.String)
			out[i] = f
		default:
			out[i] = f
		}
	}
	return e.Encoder.EncodeEntry(ent, out)
}

// AddString implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddString(key, e.redactValue(val))
}

// AddByteString implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddReflected implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddObject implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone implements zapcore.Encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys, patterns: e.patterns}
}
